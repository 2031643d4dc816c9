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
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interviewer/internal/config"
)

func testTTSConfig(url string) config.TTSConfig {
	return config.TTSConfig{
		URL:            url,
		Model:          "tts-1",
		Voice:          "alloy",
		Speed:          1.0,
		ResponseFormat: "mp3",
		MaxConcurrent:  2,
		Timeout:        5 * time.Second,
	}
}

func TestNewOpenAITTSClient_Validation(t *testing.T) {
	if _, err := NewOpenAITTSClient(testTTSConfig(""), ""); err == nil {
		t.Error("expected error for missing API key")
	}

	cfg := testTTSConfig("")
	cfg.MaxConcurrent = 0
	if _, err := NewOpenAITTSClient(cfg, "sk-test"); err == nil {
		t.Error("expected error for zero concurrency")
	}
}

func TestOpenAITTSClient_Synthesize(t *testing.T) {
	var request struct {
		Model          string  `json:"model"`
		Input          string  `json:"input"`
		Voice          string  `json:"voice"`
		ResponseFormat string  `json:"response_format"`
		Speed          float64 `json:"speed"`
	}

	server := newFakeOpenAI(t, map[string]http.HandlerFunc{
		"/audio/speech": func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
				t.Errorf("decode request: %v", err)
			}
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3-fake-mp3"))
		},
	})

	client, err := NewOpenAITTSClient(testTTSConfig(server.URL+"/v1/"), "sk-test", testOptions()...)
	if err != nil {
		t.Fatalf("NewOpenAITTSClient() error = %v", err)
	}
	defer func() { _ = client.Close() }()

	result, err := client.Synthesize(context.Background(), "What are your main strengths?", &TTSOptions{Voice: "nova"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	defer func() { _ = result.Audio.Close() }()

	data, err := io.ReadAll(result.Audio)
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != "ID3-fake-mp3" {
		t.Errorf("audio = %q", data)
	}
	if result.Format != "mp3" || result.ContentType != "audio/mpeg" {
		t.Errorf("unexpected result metadata: format=%q content_type=%q", result.Format, result.ContentType)
	}
	if request.Model != "tts-1" || request.Voice != "nova" || request.ResponseFormat != "mp3" || request.Speed != 1.0 {
		t.Errorf("unexpected request: %+v", request)
	}
	if request.Input != "What are your main strengths?" {
		t.Errorf("input = %q", request.Input)
	}
}

func TestOpenAITTSClient_SynthesizeErrors(t *testing.T) {
	server := newFakeOpenAI(t, map[string]http.HandlerFunc{
		"/audio/speech": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"message": "voice not found"}}`, http.StatusBadRequest)
		},
	})

	client, err := NewOpenAITTSClient(testTTSConfig(server.URL+"/v1/"), "sk-test", testOptions()...)
	if err != nil {
		t.Fatalf("NewOpenAITTSClient() error = %v", err)
	}

	if _, err := client.Synthesize(context.Background(), "", nil); err == nil {
		t.Error("expected error for empty text")
	}
	if _, err := client.Synthesize(context.Background(), "hello", nil); err == nil {
		t.Error("expected error for upstream failure")
	}
}

func TestOpenAITTSClient_ConcurrencyLimit(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	release := make(chan struct{})

	server := newFakeOpenAI(t, map[string]http.HandlerFunc{
		"/audio/speech": func(w http.ResponseWriter, r *http.Request) {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			<-release
			inFlight.Add(-1)
			_, _ = w.Write([]byte("audio"))
		},
	})

	cfg := testTTSConfig(server.URL + "/v1/")
	cfg.MaxConcurrent = 1
	client, err := NewOpenAITTSClient(cfg, "sk-test", testOptions()...)
	if err != nil {
		t.Fatalf("NewOpenAITTSClient() error = %v", err)
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			result, err := client.Synthesize(context.Background(), "hello", nil)
			if err == nil {
				_, _ = io.ReadAll(result.Audio)
				_ = result.Audio.Close()
			}
			errs <- err
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Synthesize() error = %v", err)
		}
	}
	if maxInFlight.Load() != 1 {
		t.Errorf("max concurrent requests = %d, want 1", maxInFlight.Load())
	}
}

func TestOpenAITTSClient_QueueRespectsContext(t *testing.T) {
	client := &OpenAITTSClient{
		config:    testTTSConfig(""),
		semaphore: make(chan struct{}, 1),
	}
	client.semaphore <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.Synthesize(ctx, "hello", nil); err == nil {
		t.Error("expected error while the queue is full")
	}
}
