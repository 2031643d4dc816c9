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

package audio

import (
	"errors"
	"testing"
)

func TestValidateUpload(t *testing.T) {
	const maxBytes = 5 * 1024 * 1024

	tests := []struct {
		name        string
		contentType string
		size        int64
		wantType    string
		wantErr     bool
	}{
		{name: "wav", contentType: "audio/wav", size: 1024, wantType: "audio/wav"},
		{name: "x-wav alias", contentType: "audio/x-wav", size: 1024, wantType: "audio/x-wav"},
		{name: "mpeg", contentType: "audio/mpeg", size: 1024, wantType: "audio/mpeg"},
		{name: "mp3", contentType: "audio/mp3", size: 1024, wantType: "audio/mp3"},
		{name: "webm with codecs", contentType: "audio/webm;codecs=opus", size: 1024, wantType: "audio/webm"},
		{name: "upper case", contentType: "Audio/WAV", size: 1024, wantType: "audio/wav"},
		{name: "exactly at limit", contentType: "audio/wav", size: maxBytes, wantType: "audio/wav"},
		{name: "over limit", contentType: "audio/wav", size: maxBytes + 1, wantErr: true},
		{name: "text", contentType: "text/plain", size: 10, wantErr: true},
		{name: "ogg", contentType: "audio/ogg", size: 10, wantErr: true},
		{name: "empty", contentType: "", size: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUpload(tt.contentType, tt.size, maxBytes)
			if tt.wantErr {
				var validationErr *ValidationError
				if !errors.As(err, &validationErr) {
					t.Fatalf("ValidateUpload() error = %v, want *ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateUpload() unexpected error = %v", err)
			}
			if got != tt.wantType {
				t.Errorf("ValidateUpload() = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestValidateUpload_Messages(t *testing.T) {
	_, err := ValidateUpload("video/mp4", 1, 100)
	if err == nil || err.Error() != "Unsupported file type: video/mp4" {
		t.Errorf("unexpected error message: %v", err)
	}

	_, err = ValidateUpload("audio/wav", 6*1024*1024, 5*1024*1024)
	if err == nil || err.Error() != "File too large (max 5.0 MiB)" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"audio/wav":              ".wav",
		"audio/wave":             ".wav",
		"audio/mpeg":             ".mp3",
		"audio/mp3":              ".mp3",
		"audio/webm;codecs=opus": ".webm",
		"application/pdf":        ".bin",
	}

	for contentType, want := range tests {
		if got := ExtensionFor(contentType); got != want {
			t.Errorf("ExtensionFor(%q) = %q, want %q", contentType, got, want)
		}
	}
}
