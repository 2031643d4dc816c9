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

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-interviewer/internal/artifacts"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

// Speaker turns question text into a playable audio artifact
type Speaker struct {
	tts   TextToSpeech
	store *artifacts.Store
}

// NewSpeaker creates a speaker writing synthesized audio into store
func NewSpeaker(tts TextToSpeech, store *artifacts.Store) *Speaker {
	return &Speaker{tts: tts, store: store}
}

// Speak synthesizes text and saves it as speech_<uuid>.<format>
func (s *Speaker) Speak(ctx context.Context, text string) (artifacts.Artifact, error) {
	result, err := s.tts.Synthesize(ctx, text, nil)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	defer func() { _ = result.Audio.Close() }()

	artifact, err := s.store.Save("speech", result.Format, result.Audio)
	if err != nil {
		return artifacts.Artifact{}, fmt.Errorf("failed to store synthesized audio: %w", err)
	}

	logging.LogTTSOperation("artifact_saved",
		zap.String("artifact", artifact.Name),
		zap.String("text", logging.Preview(text, logging.DefaultPreviewLength)),
	)

	return artifact, nil
}
