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
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-interviewer/internal/config"
)

func chatCompletionJSON(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

func newTestSummarizer(t *testing.T, handler http.HandlerFunc) *OpenAISummarizer {
	t.Helper()
	server := newFakeOpenAI(t, map[string]http.HandlerFunc{"/chat/completions": handler})

	summarizer, err := NewOpenAISummarizer(config.SummaryConfig{
		Model:       "gpt-4o-mini",
		MaxTokens:   100,
		Temperature: 0.7,
	}, "sk-test", server.URL+"/v1/", testOptions()...)
	if err != nil {
		t.Fatalf("NewOpenAISummarizer() error = %v", err)
	}
	return summarizer
}

func TestOpenAISummarizer_Summarize(t *testing.T) {
	var request struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	summarizer := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON("  Builds voice assistants.  ")))
	})

	summary, err := summarizer.Summarize(context.Background(), "I have been building voice assistants for five years.")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if summary != "Builds voice assistants." {
		t.Errorf("Summarize() = %q", summary)
	}
	if request.Model != "gpt-4o-mini" || request.MaxTokens != 100 || request.Temperature != 0.7 {
		t.Errorf("unexpected request parameters: %+v", request)
	}
	if len(request.Messages) != 1 || !strings.HasPrefix(request.Messages[0].Content, "Summarize the following text:\n") {
		t.Errorf("unexpected messages: %+v", request.Messages)
	}
	if !strings.HasSuffix(request.Messages[0].Content, "five years.") {
		t.Errorf("prompt does not carry the answer: %q", request.Messages[0].Content)
	}
}

func TestOpenAISummarizer_EmptyInputSkipsModel(t *testing.T) {
	summarizer := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("model must not be called for empty input")
	})

	for _, input := range []string{"", "   \n"} {
		summary, err := summarizer.Summarize(context.Background(), input)
		if err != nil || summary != "" {
			t.Errorf("Summarize(%q) = %q, %v; want empty, nil", input, summary, err)
		}
	}
}

func TestOpenAISummarizer_Failures(t *testing.T) {
	t.Run("upstream error", func(t *testing.T) {
		summarizer := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"message": "invalid key"}}`, http.StatusUnauthorized)
		})
		if _, err := summarizer.Summarize(context.Background(), "hello"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("empty completion", func(t *testing.T) {
		summarizer := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(chatCompletionJSON("   ")))
		})
		if _, err := summarizer.Summarize(context.Background(), "hello"); !errors.Is(err, ErrEmptyCompletion) {
			t.Errorf("Summarize() error = %v, want ErrEmptyCompletion", err)
		}
	})
}

func TestNewOpenAISummarizer_RequiresKey(t *testing.T) {
	_, err := NewOpenAISummarizer(config.SummaryConfig{Model: "gpt-4o-mini"}, "", "")
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Errorf("error = %v, want ErrMissingAPIKey", err)
	}
}
