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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// ErrInvalidWAV is returned for data that is not a RIFF/WAVE stream we can read
var ErrInvalidWAV = errors.New("invalid WAV data")

// WAV is a decoded RIFF/WAVE file
type WAV struct {
	Format        uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	Data          []byte
}

// ReadWAVFile decodes the WAV file at path
func ReadWAVFile(path string) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeWAV(f)
}

// DecodeWAV reads the fmt and data chunks of a RIFF/WAVE stream
func DecodeWAV(r io.Reader) (*WAV, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrInvalidWAV)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE marker", ErrInvalidWAV)
	}

	var (
		wav     WAV
		haveFmt bool
	)

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
			}
			return nil, err
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too small", ErrInvalidWAV)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidWAV)
			}
			wav.Format = binary.LittleEndian.Uint16(body[0:2])
			wav.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			wav.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			wav.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			if wav.Format == formatExtensible && size >= 26 {
				wav.Format = binary.LittleEndian.Uint16(body[24:26])
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			// ffmpeg writes 0xFFFFFFFF when streaming to a pipe
			if size == math.MaxUint32 {
				data, err := io.ReadAll(r)
				if err != nil {
					return nil, err
				}
				wav.Data = data
			} else {
				wav.Data = make([]byte, size)
				n, err := io.ReadFull(r, wav.Data)
				if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
					return nil, fmt.Errorf("%w: truncated data chunk", ErrInvalidWAV)
				}
				wav.Data = wav.Data[:n]
			}
			if wav.Channels <= 0 || wav.SampleRate <= 0 {
				return nil, fmt.Errorf("%w: bad channel count or sample rate", ErrInvalidWAV)
			}
			return &wav, nil

		default:
			skip := int64(size)
			if size%2 == 1 {
				skip++ // chunks are word aligned
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("%w: truncated %q chunk", ErrInvalidWAV, id)
			}
		}
	}
}

// Samples returns the audio as mono float32 in [-1, 1], averaging channels
func (w *WAV) Samples() ([]float32, error) {
	var (
		bytesPerSample int
		read           func(b []byte) float32
	)

	switch {
	case w.Format == formatPCM && w.BitsPerSample == 16:
		bytesPerSample = 2
		read = func(b []byte) float32 {
			return float32(int16(binary.LittleEndian.Uint16(b))) / 32768.0
		}
	case w.Format == formatPCM && w.BitsPerSample == 8:
		bytesPerSample = 1
		read = func(b []byte) float32 {
			return (float32(b[0]) - 128) / 128.0
		}
	case w.Format == formatIEEEFloat && w.BitsPerSample == 32:
		bytesPerSample = 4
		read = func(b []byte) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(b))
		}
	default:
		return nil, fmt.Errorf("%w: unsupported encoding (format %d, %d bits)", ErrInvalidWAV, w.Format, w.BitsPerSample)
	}

	frameSize := bytesPerSample * w.Channels
	frames := len(w.Data) / frameSize
	samples := make([]float32, frames)

	for i := 0; i < frames; i++ {
		frame := w.Data[i*frameSize : (i+1)*frameSize]
		var sum float32
		for c := 0; c < w.Channels; c++ {
			sum += read(frame[c*bytesPerSample : (c+1)*bytesPerSample])
		}
		samples[i] = sum / float32(w.Channels)
	}

	return samples, nil
}

// Duration returns the playback length of the audio in seconds
func (w *WAV) Duration() float64 {
	frameSize := w.BitsPerSample / 8 * w.Channels
	if frameSize == 0 || w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Data)/frameSize) / float64(w.SampleRate)
}

// EncodePCM16 writes mono 16-bit PCM samples as a WAV stream
func EncodePCM16(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(formatPCM))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	_ = binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}
