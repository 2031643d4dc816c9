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
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
)

func TestGoogleSTTClient_Transcribe(t *testing.T) {
	var got *speechpb.RecognizeRequest

	client := newGoogleSTTClient(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		got = req
		return &speechpb.RecognizeResponse{
			Results: []*speechpb.SpeechRecognitionResult{
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " I lead a small team. "}}},
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{}},
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "We ship weekly."}}},
			},
		}, nil
	}, "")

	text, err := client.Transcribe(context.Background(), writeTestWAV(t))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if text != "I lead a small team. We ship weekly." {
		t.Errorf("Transcribe() = %q", text)
	}

	cfg := got.GetConfig()
	if cfg.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
		t.Errorf("encoding = %v", cfg.GetEncoding())
	}
	if cfg.GetSampleRateHertz() != 16000 || cfg.GetAudioChannelCount() != 1 {
		t.Errorf("sample rate = %d, channels = %d", cfg.GetSampleRateHertz(), cfg.GetAudioChannelCount())
	}
	if cfg.GetLanguageCode() != defaultGoogleLanguage {
		t.Errorf("language = %q", cfg.GetLanguageCode())
	}
	if len(got.GetAudio().GetContent()) != 3200 {
		t.Errorf("content length = %d, want PCM payload without header", len(got.GetAudio().GetContent()))
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestGoogleSTTClient_Errors(t *testing.T) {
	client := newGoogleSTTClient(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, errors.New("permission denied")
	}, "pt-BR")

	if client.language != "pt-BR" {
		t.Errorf("language = %q", client.language)
	}
	if _, err := client.Transcribe(context.Background(), writeTestWAV(t)); err == nil {
		t.Error("expected error from recognizer")
	}
}
