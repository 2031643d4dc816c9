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
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-interviewer/internal/config"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

// OpenAITTSClient implements TextToSpeech for OpenAI-compatible TTS services
type OpenAITTSClient struct {
	client    openai.Client
	config    config.TTSConfig
	semaphore chan struct{} // Limits concurrent requests
}

// NewOpenAITTSClient creates a new OpenAI-compatible TTS client
func NewOpenAITTSClient(cfg config.TTSConfig, apiKey string, opts ...option.RequestOption) (*OpenAITTSClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("TTS API key cannot be empty")
	}
	if cfg.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("TTS max concurrent must be positive: %d", cfg.MaxConcurrent)
	}

	ttsClient := &OpenAITTSClient{
		client:    newOpenAIClient(apiKey, cfg.URL, cfg.Timeout, opts...),
		config:    cfg,
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
	}

	logging.Sugar.Infow("🔊 TTS client initialized",
		"url", cfg.URL,
		"model", cfg.Model,
		"voice", cfg.Voice,
		"max_concurrent", cfg.MaxConcurrent,
	)

	return ttsClient, nil
}

// Synthesize converts text to speech using OpenAI-compatible TTS
func (c *OpenAITTSClient) Synthesize(ctx context.Context, text string, options *TTSOptions) (*TTSResult, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	// Acquire semaphore slot for concurrency control
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, fmt.Errorf("TTS synthesis queue full: %w", ctx.Err())
	}

	startTime := time.Now()

	voice := c.config.Voice
	speed := c.config.Speed
	format := c.config.ResponseFormat

	if options != nil {
		if options.Voice != "" {
			voice = options.Voice
		}
		if options.Speed > 0 {
			speed = options.Speed
		}
		if options.ResponseFormat != "" {
			format = options.ResponseFormat
		}
	}

	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(c.config.Model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(format),
	}
	if speed > 0 {
		params.Speed = openai.Float(float64(speed))
	}

	logging.LogTTSOperation("synthesis_start",
		zap.String("voice", voice),
		zap.Int("text_length", len(text)),
		zap.String("format", format),
		zap.Float32("speed", speed),
	)

	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		logging.LogError(err, "TTS request failed",
			zap.String("voice", voice),
			zap.Int("text_length", len(text)),
		)
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}

	logging.LogTTSOperation("synthesis_complete",
		zap.String("voice", voice),
		zap.Int("text_length", len(text)),
		zap.Duration("processing_time", time.Since(startTime)),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.Int64("content_length", resp.ContentLength),
	)

	return &TTSResult{
		Audio:       resp.Body,
		Format:      format,
		ContentType: resp.Header.Get("Content-Type"),
		Length:      resp.ContentLength,
	}, nil
}

// Close cleans up resources
func (c *OpenAITTSClient) Close() error {
	return nil
}

var _ TextToSpeech = (*OpenAITTSClient)(nil)
