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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/loqalabs/loqa-interviewer/internal/config"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

const summaryPrompt = "Summarize the following text:\n"

// ErrEmptyCompletion is returned when the model answers without any content
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Summarizer maps text to a shorter text
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// OpenAISummarizer summarizes answers with an OpenAI-compatible chat model
type OpenAISummarizer struct {
	client openai.Client
	config config.SummaryConfig
}

// NewOpenAISummarizer creates a summarizer. The API key is required.
func NewOpenAISummarizer(cfg config.SummaryConfig, apiKey, baseURL string, opts ...option.RequestOption) (*OpenAISummarizer, error) {
	if apiKey == "" {
		return nil, config.ErrMissingAPIKey
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("summary model cannot be empty")
	}

	logging.Sugar.Infow("Configured summarizer",
		"model", cfg.Model,
		"max_tokens", cfg.MaxTokens,
	)

	return &OpenAISummarizer{
		client: newOpenAIClient(apiKey, baseURL, cfg.Timeout, opts...),
		config: cfg,
	}, nil
}

// Summarize returns a concise summary of text. Empty input yields an empty
// summary without a model call.
func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	startTime := time.Now()

	params := openai.ChatCompletionNewParams{
		Model: s.config.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(summaryPrompt + text),
		},
		Temperature: openai.Float(s.config.Temperature),
	}
	if s.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(s.config.MaxTokens))
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", ErrEmptyCompletion
	}

	logging.Sugar.Infow("Summary generated",
		"model", resp.Model,
		"processing_time_ms", time.Since(startTime).Milliseconds(),
		"summary", logging.Preview(summary, logging.DefaultPreviewLength),
	)

	return summary, nil
}
