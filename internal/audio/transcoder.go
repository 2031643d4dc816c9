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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-interviewer/internal/config"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

// ErrTranscode is returned when an input cannot be decoded into canonical audio
var ErrTranscode = errors.New("transcode failed")

// Transcoder converts an arbitrary audio container into canonical audio
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string) error
}

// FFmpegTranscoder produces 16-bit little-endian PCM mono WAV by running ffmpeg
type FFmpegTranscoder struct {
	binary     string
	sampleRate int
}

// NewFFmpegTranscoder creates a transcoder from configuration
func NewFFmpegTranscoder(cfg config.TranscodeConfig) *FFmpegTranscoder {
	binary := cfg.FFmpegPath
	if binary == "" {
		binary = "ffmpeg"
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	return &FFmpegTranscoder{
		binary:     binary,
		sampleRate: sampleRate,
	}
}

// Available reports whether the ffmpeg binary can be found
func (t *FFmpegTranscoder) Available() bool {
	_, err := exec.LookPath(t.binary)
	return err == nil
}

// Transcode converts inputPath to canonical WAV at outputPath.
// Every failure wraps ErrTranscode.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, inputPath, outputPath string) error {
	startTime := time.Now()

	// ffmpeg -y -i input -ac 1 -ar 16000 -acodec pcm_s16le -f wav output
	cmd := exec.CommandContext(ctx, t.binary,
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", inputPath,
		"-ac", "1", "-ar", strconv.Itoa(t.sampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A partial output must not be mistaken for canonical audio
		_ = os.Remove(outputPath)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrTranscode, ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%w: ffmpeg: %v: %s", ErrTranscode, err, logging.Preview(detail, 200))
		}
		return fmt.Errorf("%w: ffmpeg: %v", ErrTranscode, err)
	}

	logging.Logger.Debug("Audio transcoded",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.Int("sample_rate", t.sampleRate),
		zap.Duration("duration", time.Since(startTime)),
	)

	return nil
}
