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

package artifacts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/loqalabs/loqa-interviewer/internal/logging"
	"github.com/loqalabs/loqa-interviewer/internal/security"
)

var (
	// ErrNotFound is returned when a requested artifact does not exist in the storage area
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName is returned when a requested artifact name could escape the storage area
	ErrInvalidName = security.ErrInvalidArtifactName
)

// Artifact is a generated audio file owned by the storage area
type Artifact struct {
	Name      string
	Path      string
	MediaType string
}

// Store is the directory where uploads, canonical audio and synthesized
// speech live until an external sweep removes them. Every artifact gets a
// unique name, so concurrent writers never share a path.
type Store struct {
	dir string
}

// NewStore creates the storage area if needed
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

// Dir returns the storage area location
func (s *Store) Dir() string {
	return s.dir
}

// NewName builds a unique artifact filename such as speech_<uuid>.mp3
func NewName(prefix, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, uuid.NewString(), ext)
}

// Create opens a new uniquely named artifact for writing. The caller closes the file.
func (s *Store) Create(prefix, ext string) (*os.File, Artifact, error) {
	name := NewName(prefix, ext)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return nil, Artifact{}, fmt.Errorf("failed to create artifact %s: %w", name, err)
	}

	return f, Artifact{Name: name, Path: path, MediaType: MediaType(name)}, nil
}

// Reserve returns a unique artifact location without creating the file, for
// writers such as ffmpeg that create their own output
func (s *Store) Reserve(prefix, ext string) Artifact {
	name := NewName(prefix, ext)
	return Artifact{Name: name, Path: filepath.Join(s.dir, name), MediaType: MediaType(name)}
}

// Save copies r into a new artifact
func (s *Store) Save(prefix, ext string, r io.Reader) (Artifact, error) {
	f, artifact, err := s.Create(prefix, ext)
	if err != nil {
		return Artifact{}, err
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(artifact.Path)
		return Artifact{}, fmt.Errorf("failed to write artifact %s: %w", artifact.Name, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(artifact.Path)
		return Artifact{}, fmt.Errorf("failed to close artifact %s: %w", artifact.Name, err)
	}

	return artifact, nil
}

// Resolve looks up an existing artifact by filename
func (s *Store) Resolve(name string) (Artifact, error) {
	if err := security.ValidateArtifactName(name); err != nil {
		return Artifact{}, err
	}

	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, fmt.Errorf("failed to stat artifact %s: %w", name, err)
	}

	if !info.Mode().IsRegular() {
		return Artifact{}, ErrNotFound
	}

	return Artifact{Name: name, Path: path, MediaType: MediaType(name)}, nil
}

// SweepResult reports what a sweep removed
type SweepResult struct {
	Scanned    int
	Removed    int
	FreedBytes int64
}

// Sweep removes regular files older than maxAge. It is meant to run outside
// the request path, either from the sweep command or a background ticker.
func (s *Store) Sweep(maxAge time.Duration, now time.Time) (SweepResult, error) {
	var result SweepResult

	if maxAge <= 0 {
		return result, fmt.Errorf("sweep max age must be positive: %v", maxAge)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return result, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	cutoff := now.Add(-maxAge)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		result.Scanned++

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logging.Sugar.Warnw("Failed to remove stale artifact", "artifact", entry.Name(), "error", err)
			}
			continue
		}
		result.Removed++
		result.FreedBytes += info.Size()
	}

	logging.Sugar.Infow("🧹 Artifact sweep completed",
		"dir", s.dir,
		"scanned", result.Scanned,
		"removed", result.Removed,
		"freed_bytes", result.FreedBytes,
	)

	return result, nil
}

// DiskUsage describes the filesystem holding the storage area
type DiskUsage struct {
	Dir         string  `json:"dir"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// Usage reports free space on the filesystem holding the storage area
func (s *Store) Usage() (DiskUsage, error) {
	stat, err := disk.Usage(s.dir)
	if err != nil {
		return DiskUsage{Dir: s.dir}, fmt.Errorf("failed to read disk usage: %w", err)
	}

	return DiskUsage{
		Dir:         s.dir,
		FreeBytes:   stat.Free,
		UsedPercent: stat.UsedPercent,
	}, nil
}

// MediaType maps an artifact filename to the media type it is served with
func MediaType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".webm":
		return "audio/webm"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".aac":
		return "audio/aac"
	case ".pcm":
		return "audio/L16"
	default:
		return "application/octet-stream"
	}
}
