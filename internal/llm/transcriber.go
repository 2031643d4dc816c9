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

	"github.com/openai/openai-go/option"

	"github.com/loqalabs/loqa-interviewer/internal/config"
)

// ErrUnknownBackend is returned for an STT backend name no client exists for
var ErrUnknownBackend = errors.New("unknown STT backend")

// Transcriber defines the interface for speech-to-text transcription services
type Transcriber interface {
	// Transcribe converts a canonical WAV file to text
	Transcribe(ctx context.Context, wavPath string) (string, error)

	// Close cleans up resources
	Close() error
}

// NewTranscriber creates the transcriber selected by STT_BACKEND.
// A returned error means the capability is unavailable for this process.
func NewTranscriber(ctx context.Context, cfg *config.Config, opts ...option.RequestOption) (Transcriber, error) {
	var (
		transcriber Transcriber
		err         error
	)

	// Assign only on success; a typed nil must not reach the interface
	switch cfg.STT.Backend {
	case "openai":
		var c *STTClient
		if c, err = NewSTTClient(cfg.STT, cfg.OpenAI.APIKey, opts...); err == nil {
			transcriber = c
		}
	case "google":
		var c *GoogleSTTClient
		if c, err = NewGoogleSTTClient(ctx, cfg.STT); err == nil {
			transcriber = c
		}
	case "whisper":
		var c *WhisperTranscriber
		if c, err = NewWhisperTranscriber(cfg.STT.WhisperModelPath, cfg.STT.Language); err == nil {
			transcriber = c
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.STT.Backend)
	}

	if err != nil {
		return nil, err
	}
	return transcriber, nil
}
