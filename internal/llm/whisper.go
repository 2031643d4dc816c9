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

//go:build whisper

package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/loqalabs/loqa-interviewer/internal/audio"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

// whisper.cpp models are trained on 16 kHz mono audio
const whisperSampleRate = 16000

// WhisperTranscriber handles speech-to-text with a local whisper.cpp model
type WhisperTranscriber struct {
	model     whisper.Model
	modelPath string
	language  string
	mu        sync.Mutex // one inference at a time per model
}

// NewWhisperTranscriber loads the whisper.cpp model at modelPath
func NewWhisperTranscriber(modelPath, language string) (*WhisperTranscriber, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper model not found at %s", modelPath)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	logging.Sugar.Infow("✅ Whisper model loaded", "model_path", modelPath)
	return &WhisperTranscriber{
		model:     model,
		modelPath: modelPath,
		language:  language,
	}, nil
}

type whisperResult struct {
	text string
	err  error
}

// Transcribe decodes the WAV file and runs local inference. Inference cannot
// be interrupted, so a cancelled ctx abandons the result instead.
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if wt.model == nil {
		return "", fmt.Errorf("whisper model not initialized")
	}

	wav, err := audio.ReadWAVFile(wavPath)
	if err != nil {
		return "", err
	}
	if wav.SampleRate != whisperSampleRate {
		return "", fmt.Errorf("whisper needs %d Hz audio, got %d Hz", whisperSampleRate, wav.SampleRate)
	}
	samples, err := wav.Samples()
	if err != nil {
		return "", err
	}

	done := make(chan whisperResult, 1)
	go func() {
		text, err := wt.process(samples)
		done <- whisperResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}

func (wt *WhisperTranscriber) process(samples []float32) (string, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	wctx, err := wt.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create whisper context: %w", err)
	}
	if wt.language != "" {
		if err := wctx.SetLanguage(wt.language); err != nil {
			return "", fmt.Errorf("failed to set whisper language: %w", err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("failed to process audio: %w", err)
	}

	var transcript strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		transcript.WriteString(segment.Text)
	}

	result := strings.TrimSpace(transcript.String())
	logging.Sugar.Infow("🧠 Whisper transcription", "text", logging.Preview(result, logging.DefaultPreviewLength))
	return result, nil
}

// Close cleans up the Whisper model
func (wt *WhisperTranscriber) Close() error {
	if wt.model != nil {
		if err := wt.model.Close(); err != nil {
			return err
		}
		logging.Sugar.Info("🧠 Whisper model closed")
	}
	return nil
}
