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

//go:build !whisper

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/loqalabs/loqa-interviewer/internal/config"
)

func TestNewTranscriber_WhisperDisabled(t *testing.T) {
	cfg := &config.Config{STT: config.STTConfig{Backend: "whisper", WhisperModelPath: "./models/ggml-base.bin"}}

	transcriber, err := NewTranscriber(context.Background(), cfg)
	if !errors.Is(err, ErrWhisperDisabled) {
		t.Fatalf("error = %v, want ErrWhisperDisabled", err)
	}
	if transcriber != nil {
		t.Errorf("NewTranscriber() = %#v, want nil", transcriber)
	}
}
