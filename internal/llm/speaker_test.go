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
	"io"
	"os"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-interviewer/internal/artifacts"
)

type fakeTTS struct {
	audio  string
	format string
	err    error
	texts  []string
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string, options *TTSOptions) (*TTSResult, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return &TTSResult{
		Audio:  io.NopCloser(strings.NewReader(f.audio)),
		Format: f.format,
		Length: int64(len(f.audio)),
	}, nil
}

func (f *fakeTTS) Close() error { return nil }

func TestSpeaker_Speak(t *testing.T) {
	store, err := artifacts.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	tts := &fakeTTS{audio: "synthesized-bytes", format: "mp3"}
	speaker := NewSpeaker(tts, store)

	artifact, err := speaker.Speak(context.Background(), "Why do you want to work with us?")
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	if !strings.HasPrefix(artifact.Name, "speech_") || !strings.HasSuffix(artifact.Name, ".mp3") {
		t.Errorf("artifact name = %q", artifact.Name)
	}
	if artifact.MediaType != "audio/mpeg" {
		t.Errorf("media type = %q", artifact.MediaType)
	}

	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "synthesized-bytes" {
		t.Errorf("artifact content = %q", data)
	}
	if len(tts.texts) != 1 || tts.texts[0] != "Why do you want to work with us?" {
		t.Errorf("synthesized texts = %q", tts.texts)
	}
}

func TestSpeaker_SynthesisFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := artifacts.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	speaker := NewSpeaker(&fakeTTS{err: errors.New("quota exceeded")}, store)
	if _, err := speaker.Speak(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("failed synthesis left %d artifacts", len(entries))
	}
}
