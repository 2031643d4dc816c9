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
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/loqalabs/loqa-interviewer/internal/audio"
	"github.com/loqalabs/loqa-interviewer/internal/config"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

const defaultGoogleLanguage = "en-US"

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleSTTClient transcribes canonical audio with Google Cloud Speech.
// Authentication uses Application Default Credentials.
type GoogleSTTClient struct {
	speechClient *speech.Client
	recognize    recognizeFunc
	language     string
}

// NewGoogleSTTClient creates a new Google Cloud Speech client
func NewGoogleSTTClient(ctx context.Context, cfg config.STTConfig) (*GoogleSTTClient, error) {
	speechClient, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	c := newGoogleSTTClient(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return speechClient.Recognize(ctx, req)
	}, cfg.Language)
	c.speechClient = speechClient

	logging.Sugar.Infow("Configured Google Cloud Speech client", "language", c.language)

	return c, nil
}

func newGoogleSTTClient(recognize recognizeFunc, language string) *GoogleSTTClient {
	if language == "" {
		language = defaultGoogleLanguage
	}
	return &GoogleSTTClient{recognize: recognize, language: language}
}

// Transcribe sends the PCM payload of the WAV file for synchronous recognition
func (g *GoogleSTTClient) Transcribe(ctx context.Context, wavPath string) (string, error) {
	wav, err := audio.ReadWAVFile(wavPath)
	if err != nil {
		return "", err
	}
	if wav.BitsPerSample != 16 {
		return "", fmt.Errorf("google speech needs 16-bit PCM, got %d bits", wav.BitsPerSample)
	}

	startTime := time.Now()

	resp, err := g.recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   int32(wav.SampleRate),
			AudioChannelCount: int32(wav.Channels),
			LanguageCode:      g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: wav.Data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("speech recognize failed: %w", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alternatives := result.GetAlternatives(); len(alternatives) > 0 {
			if t := strings.TrimSpace(alternatives[0].GetTranscript()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	text := strings.Join(parts, " ")

	logging.Sugar.Infow("Transcription completed",
		"backend", "google",
		"processing_time_ms", time.Since(startTime).Milliseconds(),
		"text_length", len(text),
		"text", logging.Preview(text, logging.DefaultPreviewLength),
	)

	return text, nil
}

// Close cleans up the speech client connection
func (g *GoogleSTTClient) Close() error {
	if g.speechClient != nil {
		return g.speechClient.Close()
	}
	return nil
}
