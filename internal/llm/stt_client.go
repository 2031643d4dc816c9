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

package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/loqalabs/loqa-interviewer/internal/config"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

// STTClient implements the Transcriber interface using any
// OpenAI-compatible Speech-to-Text service
type STTClient struct {
	client   openai.Client
	baseURL  string
	model    string
	language string
}

// NewSTTClient creates a new OpenAI-compatible STT client
func NewSTTClient(cfg config.STTConfig, apiKey string, opts ...option.RequestOption) (*STTClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("STT API key cannot be empty")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("STT model cannot be empty")
	}

	s := &STTClient{
		client:   newOpenAIClient(apiKey, cfg.URL, cfg.Timeout, opts...),
		baseURL:  cfg.URL,
		model:    cfg.Model,
		language: cfg.Language,
	}

	logging.Sugar.Infow("Configured OpenAI-compatible STT client",
		"base_url", cfg.URL,
		"model", cfg.Model,
	)

	return s, nil
}

// Transcribe uploads the WAV file and returns the recognized text
func (s *STTClient) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", fmt.Errorf("failed to open audio: %w", err)
	}
	defer func() { _ = f.Close() }()

	startTime := time.Now()

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(s.model),
	}
	if s.language != "" {
		params.Language = openai.String(s.language)
	}

	resp, err := s.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)

	logging.Sugar.Infow("Transcription completed",
		"model", s.model,
		"processing_time_ms", time.Since(startTime).Milliseconds(),
		"text_length", len(text),
		"text", logging.Preview(text, logging.DefaultPreviewLength),
	)

	return text, nil
}

// Close cleans up resources
func (s *STTClient) Close() error {
	logging.Sugar.Infow("Closing STT client", "base_url", s.baseURL)
	return nil
}
