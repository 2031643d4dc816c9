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
	"fmt"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"
)

// acceptedMediaTypes maps every declared upload type we accept to the
// extension the raw upload is stored under
var acceptedMediaTypes = map[string]string{
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/wave":  ".wav",
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/webm":  ".webm",
}

// ValidationError is a structurally invalid upload. It is reported to the
// caller as a client error and the upload never reaches the pipeline.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NormalizeMediaType lower-cases a declared content type and strips
// parameters such as ";codecs=opus"
func NormalizeMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// ExtensionFor returns the storage extension for an accepted content type
func ExtensionFor(contentType string) string {
	if ext, ok := acceptedMediaTypes[NormalizeMediaType(contentType)]; ok {
		return ext
	}
	return ".bin"
}

// ValidateUpload checks the declared media type and size of an upload.
// It returns the normalized media type on success.
func ValidateUpload(contentType string, size, maxBytes int64) (string, error) {
	mediaType := NormalizeMediaType(contentType)
	if _, ok := acceptedMediaTypes[mediaType]; !ok {
		if mediaType == "" {
			mediaType = "unknown"
		}
		return "", &ValidationError{Reason: fmt.Sprintf("Unsupported file type: %s", mediaType)}
	}

	if maxBytes > 0 && size > maxBytes {
		return "", TooLarge(maxBytes)
	}

	return mediaType, nil
}

// TooLarge is the rejection for an upload over maxBytes
func TooLarge(maxBytes int64) *ValidationError {
	return &ValidationError{
		Reason: fmt.Sprintf("File too large (max %s)", humanize.IBytes(uint64(maxBytes))),
	}
}
