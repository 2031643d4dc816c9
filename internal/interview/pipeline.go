/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package interview

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/loqalabs/loqa-interviewer/internal/artifacts"
	"github.com/loqalabs/loqa-interviewer/internal/audio"
	"github.com/loqalabs/loqa-interviewer/internal/events"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

// Transcoder converts a raw upload into canonical WAV
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string) error
}

// Transcriber maps canonical audio to text
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Summarizer maps text to a shorter text
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Speaker maps text to a playable audio artifact
type Speaker interface {
	Speak(ctx context.Context, text string) (artifacts.Artifact, error)
}

// Journal stores processed turns
type Journal interface {
	RecordTurn(ctx context.Context, event *events.TurnEvent) error
}

// Publisher announces processed turns and finished sessions
type Publisher interface {
	PublishTurn(event *events.TurnEvent) error
	PublishSessionFinished(event *events.SessionFinishedEvent) error
}

// Budgets caps how long each external call may take. Turn bounds the whole
// answer, including a second synthesis after a lost race.
type Budgets struct {
	Turn       time.Duration
	Transcode  time.Duration
	Transcribe time.Duration
	Summarize  time.Duration
	Synthesize time.Duration
}

// Upload is a validated answer recording
type Upload struct {
	Body      io.Reader
	MediaType string
	Size      int64
}

// TurnResult is everything one answer produces
type TurnResult struct {
	Transcription     string   `json:"transcription"`
	Summary           string   `json:"summary"`
	NextQuestionAudio string   `json:"next_question_audio"`
	NextQuestion      string   `json:"next_question"`
	QuestionIndex     int      `json:"question_index"`
	Finished          bool     `json:"finished"`
	Degraded          []string `json:"degraded,omitempty"`
}

// Pipeline processes answers for any session
type Pipeline struct {
	store       *artifacts.Store
	transcoder  Transcoder
	transcriber Transcriber
	summarizer  Summarizer
	speaker     Speaker
	budgets     Budgets
	journal     Journal
	publisher   Publisher
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithBudgets sets per-stage time budgets
func WithBudgets(b Budgets) Option {
	return func(p *Pipeline) { p.budgets = b }
}

// WithJournal records every turn
func WithJournal(j Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithPublisher publishes every turn
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// NewPipeline wires the turn pipeline. Any capability may be nil, in which
// case its stage always degrades.
func NewPipeline(store *artifacts.Store, transcoder Transcoder, transcriber Transcriber, summarizer Summarizer, speaker Speaker, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		transcoder:  transcoder,
		transcriber: transcriber,
		summarizer:  summarizer,
		speaker:     speaker,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessAnswer runs one turn: the answer is transcoded, transcribed and
// summarized while the upcoming question is synthesized, then the session
// advances exactly once. Stage failures degrade to their fallbacks; the only
// returned error is a fault storing the upload, before anything advanced.
func (p *Pipeline) ProcessAnswer(ctx context.Context, session *Session, upload Upload) (TurnResult, error) {
	event := events.NewTurnEvent(session.ID())

	hasher := sha256.New()
	input, err := p.store.Save("input", audio.ExtensionFor(upload.MediaType), io.TeeReader(upload.Body, hasher))
	if err != nil {
		return TurnResult{}, fmt.Errorf("failed to store upload: %w", err)
	}
	event.SetUpload(upload.MediaType, upload.Size, hex.EncodeToString(hasher.Sum(nil)))

	log := logging.Logger.With(
		zap.String("session_id", session.ID()),
		zap.String("turn_id", event.UUID),
	)

	turnCtx := ctx
	if p.budgets.Turn > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, p.budgets.Turn)
		defer cancel()
	}

	var (
		transcoded  Outcome[artifacts.Artifact]
		transcribed Outcome[string]
		summarized  Outcome[string]
		prefetched  Outcome[artifacts.Artifact]
	)

	peek := session.Peek()

	var g errgroup.Group
	g.Go(func() error {
		transcoded = p.transcode(turnCtx, input)
		transcribed = p.transcribe(turnCtx, transcoded)
		summarized = p.summarize(turnCtx, transcribed.Or(""))
		return nil
	})
	g.Go(func() error {
		prefetched = p.synthesize(turnCtx, peek.Text)
		return nil
	})
	_ = g.Wait()

	next := session.Next()
	spoken := prefetched
	if next.Index != peek.Index || next.Finished != peek.Finished {
		// Another turn advanced this session in between
		log.Info("Discarding prefetched question audio",
			zap.Int("peeked_index", peek.Index),
			zap.Int("advanced_index", next.Index),
		)
		spoken = p.synthesize(turnCtx, next.Text)
	}

	text := transcribed.Or("")
	result := TurnResult{
		Transcription:     text,
		Summary:           summarized.Or(text),
		NextQuestionAudio: spoken.Or(artifacts.Artifact{}).Name,
		NextQuestion:      next.Text,
		QuestionIndex:     next.Index,
		Finished:          next.Finished,
	}

	if transcoded.OK() {
		event.AnswerArtifact = transcoded.Value.Name
		if wav, err := audio.ReadWAVFile(transcoded.Value.Path); err == nil {
			event.AudioDuration = wav.Duration()
		}
	}
	for _, stage := range []struct {
		stage Stage
		err   error
	}{
		{transcoded.Stage, transcoded.Err},
		{transcribed.Stage, transcribed.Err},
		{summarized.Stage, summarized.Err},
		{spoken.Stage, spoken.Err},
	} {
		if stage.err == nil {
			continue
		}
		result.Degraded = append(result.Degraded, string(stage.stage))
		event.AddFailure(string(stage.stage), stage.err)
	}

	event.Transcription = result.Transcription
	event.Summary = result.Summary
	event.SpeechArtifact = result.NextQuestionAudio
	event.SetAdvance(next.Index, next.Text, next.Finished)
	event.Complete()

	log.Info("Turn processed",
		zap.String("input", input.Name),
		zap.Int("question_index", next.Index),
		zap.Bool("finished", next.Finished),
		zap.Strings("degraded", result.Degraded),
		zap.Int64("processing_time_ms", event.ProcessingTime),
	)

	p.record(context.WithoutCancel(ctx), session, event, !next.Finished && next.Index == session.Len())

	return result, nil
}

func (p *Pipeline) transcode(ctx context.Context, input artifacts.Artifact) Outcome[artifacts.Artifact] {
	if p.transcoder == nil {
		return logged(Failed[artifacts.Artifact](StageTranscode, ErrUnavailable), input.Name, "")
	}

	canonical := p.store.Reserve("answer", "wav")
	outcome := runStage(ctx, StageTranscode, p.budgets.Transcode, func(ctx context.Context) (artifacts.Artifact, error) {
		if err := p.transcoder.Transcode(ctx, input.Path, canonical.Path); err != nil {
			return artifacts.Artifact{}, err
		}
		return canonical, nil
	})
	return logged(outcome, input.Name, "")
}

func (p *Pipeline) transcribe(ctx context.Context, canonical Outcome[artifacts.Artifact]) Outcome[string] {
	if !canonical.OK() {
		return Failed[string](StageTranscribe, fmt.Errorf("no canonical audio: %w", canonical.Err))
	}
	if p.transcriber == nil {
		return logged(Failed[string](StageTranscribe, ErrUnavailable), canonical.Value.Name, "")
	}

	outcome := runStage(ctx, StageTranscribe, p.budgets.Transcribe, func(ctx context.Context) (string, error) {
		return p.transcriber.Transcribe(ctx, canonical.Value.Path)
	})
	return logged(outcome, canonical.Value.Name, outcome.Value)
}

func (p *Pipeline) summarize(ctx context.Context, text string) Outcome[string] {
	if text == "" {
		return Succeeded(StageSummarize, "")
	}
	if p.summarizer == nil {
		return logged(Failed[string](StageSummarize, ErrUnavailable), "", text)
	}

	outcome := runStage(ctx, StageSummarize, p.budgets.Summarize, func(ctx context.Context) (string, error) {
		return p.summarizer.Summarize(ctx, text)
	})
	preview := text
	if outcome.OK() {
		preview = outcome.Value
	}
	return logged(outcome, "", preview)
}

func (p *Pipeline) synthesize(ctx context.Context, text string) Outcome[artifacts.Artifact] {
	if p.speaker == nil {
		return logged(Failed[artifacts.Artifact](StageSynthesize, ErrUnavailable), "", text)
	}

	outcome := runStage(ctx, StageSynthesize, p.budgets.Synthesize, func(ctx context.Context) (artifacts.Artifact, error) {
		return p.speaker.Speak(ctx, text)
	})
	return logged(outcome, outcome.Value.Name, text)
}

// logged reports a stage outcome with its artifact and a payload preview
func logged[T any](o Outcome[T], artifact, preview string) Outcome[T] {
	fields := make([]zap.Field, 0, 2)
	if artifact != "" {
		fields = append(fields, zap.String("artifact", artifact))
	}
	if preview != "" {
		fields = append(fields, zap.String("preview", logging.Preview(preview, logging.DefaultPreviewLength)))
	}

	if o.Err != nil {
		logging.LogStageFailure(string(o.Stage), o.Err, fields...)
		return o
	}
	logging.LogStage(string(o.Stage), fields...)
	return o
}

// record journals and publishes a turn. Both sinks are best-effort.
func (p *Pipeline) record(ctx context.Context, session *Session, event *events.TurnEvent, justFinished bool) {
	if p.journal != nil {
		if err := p.journal.RecordTurn(ctx, event); err != nil {
			logging.LogWarn("Failed to journal turn",
				zap.String("turn_id", event.UUID),
				zap.Error(err),
			)
		}
	}

	if p.publisher == nil {
		return
	}

	if err := p.publisher.PublishTurn(event); err != nil {
		logging.LogWarn("Failed to publish turn",
			zap.String("turn_id", event.UUID),
			zap.Error(err),
		)
	}

	if justFinished {
		finished := &events.SessionFinishedEvent{
			SessionID:      session.ID(),
			TotalQuestions: session.Len(),
			Timestamp:      time.Now(),
		}
		if err := p.publisher.PublishSessionFinished(finished); err != nil {
			logging.LogWarn("Failed to publish session finished",
				zap.String("session_id", session.ID()),
				zap.Error(err),
			)
		}
	}
}
