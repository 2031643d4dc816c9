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

package security

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidArtifactName is returned when an artifact filename is unsafe to resolve
	ErrInvalidArtifactName = errors.New("invalid artifact name")

	// artifactNamePattern allows a base name with a single extension
	artifactNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.[a-zA-Z0-9]+$`)
)

// SanitizeLogInput removes newline characters to prevent log injection attacks.
// Use it for all client-controlled data (upload filenames, content types) before logging.
func SanitizeLogInput(input string) string {
	sanitized := strings.ReplaceAll(input, "\n", "")
	sanitized = strings.ReplaceAll(sanitized, "\r", "")
	return sanitized
}

// ValidateArtifactName ensures a requested artifact filename cannot escape the
// storage area. Only alphanumeric ASCII, dashes and underscores are allowed,
// followed by one extension.
func ValidateArtifactName(name string) error {
	if name == "" {
		return ErrInvalidArtifactName
	}

	if strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return ErrInvalidArtifactName
	}

	if !artifactNamePattern.MatchString(name) {
		return ErrInvalidArtifactName
	}

	return nil
}
