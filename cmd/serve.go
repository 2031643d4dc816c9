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

package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-interviewer/internal/artifacts"
	"github.com/loqalabs/loqa-interviewer/internal/audio"
	"github.com/loqalabs/loqa-interviewer/internal/capabilities"
	"github.com/loqalabs/loqa-interviewer/internal/config"
	"github.com/loqalabs/loqa-interviewer/internal/interview"
	"github.com/loqalabs/loqa-interviewer/internal/llm"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
	"github.com/loqalabs/loqa-interviewer/internal/messaging"
	"github.com/loqalabs/loqa-interviewer/internal/server"
	"github.com/loqalabs/loqa-interviewer/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interview HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := artifacts.NewStore(cfg.Artifacts.Dir)
	if err != nil {
		return err
	}

	questions, err := cfg.Questions()
	if err != nil {
		return err
	}

	detector := capabilities.NewDetector()
	detector.SetDegradationCallback(func(reason string) {
		logging.LogWarn("⚠️  Interview pipeline degraded", zap.String("reason", reason))
	})

	transcoder := audio.NewFFmpegTranscoder(cfg.Transcode)
	detector.Register("transcode", func(context.Context) bool { return transcoder.Available() })
	if !transcoder.Available() {
		logging.LogWarn("⚠️  ffmpeg not found, answers will not be transcribed",
			zap.String("ffmpeg", cfg.Transcode.FFmpegPath))
	}

	var pipelineTranscriber interview.Transcriber
	transcriber, err := llm.NewTranscriber(ctx, cfg)
	if err != nil {
		logging.LogError(err, "Speech-to-text unavailable, transcriptions will be empty",
			zap.String("backend", cfg.STT.Backend))
	} else {
		defer transcriber.Close()
		pipelineTranscriber = transcriber
	}
	if cfg.STT.Backend == "openai" {
		detector.Register("transcribe", endpointProbe(pipelineTranscriber != nil, cfg.STT.URL))
	} else {
		detector.Register("transcribe", capabilities.Static(pipelineTranscriber != nil))
	}

	var summarizer interview.Summarizer
	if s, err := llm.NewOpenAISummarizer(cfg.Summary, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL); err != nil {
		logging.LogError(err, "Summarizer unavailable, summaries will echo the transcription")
	} else {
		summarizer = s
	}
	detector.Register("summarize", capabilities.Static(summarizer != nil))

	var speaker interview.Speaker
	if tts, err := llm.NewOpenAITTSClient(cfg.TTS, cfg.OpenAI.APIKey); err != nil {
		logging.LogError(err, "Text-to-speech unavailable, questions will have no audio")
	} else {
		defer tts.Close()
		speaker = llm.NewSpeaker(tts, store)
	}
	detector.Register("synthesize", endpointProbe(speaker != nil, cfg.TTS.URL))

	opts := []interview.Option{
		interview.WithBudgets(interview.Budgets{
			Turn:       cfg.Interview.TurnTimeout,
			Transcode:  cfg.Transcode.Timeout,
			Transcribe: cfg.STT.Timeout,
			Summarize:  cfg.Summary.Timeout,
			Synthesize: cfg.TTS.Timeout,
		}),
	}

	deps := server.Dependencies{Store: store}

	if cfg.Database.Path != "" {
		db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Database.Path})
		if err != nil {
			logging.LogError(err, "Turn journal unavailable")
		} else {
			defer db.Close()
			turns := storage.NewTurnsStore(db)
			opts = append(opts, interview.WithJournal(turns))
			deps.Turns = turns
			detector.Register("journal", func(ctx context.Context) bool { return db.Ping(ctx) == nil })
		}
	}

	if cfg.NATS.URL != "" {
		publisher, err := messaging.NewNATSService(cfg.NATS)
		if err == nil {
			err = publisher.Connect()
		}
		if err != nil {
			logging.LogError(err, "NATS unavailable, turn events will not be published")
		} else {
			defer publisher.Close()
			opts = append(opts, interview.WithPublisher(publisher))
			deps.Messaging = publisher
			detector.Register("nats", func(context.Context) bool { return publisher.IsConnected() })
		}
	}

	deps.Capabilities = detector
	go detector.Start(ctx)

	deps.Registry = interview.NewRegistry(questions, cfg.Interview.ClosingMessage,
		interview.WithMaxSessions(cfg.Interview.MaxSessions))
	deps.Pipeline = interview.NewPipeline(store, transcoder, pipelineTranscriber, summarizer, speaker, opts...)

	if cfg.Artifacts.MaxAge > 0 || cfg.Interview.SessionIdle > 0 {
		go sweepPeriodically(ctx, store, deps.Registry, cfg.Artifacts.MaxAge, cfg.Interview.SessionIdle)
	}

	srv := server.New(cfg, deps)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Stop()
	}
}

// endpointProbe checks a self-hosted OpenAI-compatible endpoint through its
// model listing. Without a base URL the hosted API is assumed reachable.
func endpointProbe(configured bool, baseURL string) capabilities.Probe {
	if !configured || baseURL == "" {
		return capabilities.Static(configured)
	}
	return capabilities.HTTPHealth(strings.TrimSuffix(baseURL, "/")+"/models", 5*time.Second)
}

// sweepPeriodically removes stale artifacts and idle sessions until ctx is
// cancelled. A zero age disables that half of the sweep.
func sweepPeriodically(ctx context.Context, store *artifacts.Store, registry *interview.Registry, maxAge, sessionIdle time.Duration) {
	interval := time.Hour
	for _, d := range []time.Duration{maxAge, sessionIdle} {
		if d > 0 {
			interval = min(interval, d)
		}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if maxAge > 0 {
				if _, err := store.Sweep(maxAge, now); err != nil {
					logging.LogWarn("Artifact sweep failed", zap.Error(err))
				}
			}
			if sessionIdle > 0 {
				registry.Evict(sessionIdle, now)
			}
		}
	}
}
