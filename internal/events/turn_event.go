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

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StageFailure records one pipeline stage that fell back to its default
type StageFailure struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// TurnEvent represents one processed interview turn with full traceability
type TurnEvent struct {
	// Core identification
	UUID      string    `json:"uuid" db:"uuid"`
	SessionID string    `json:"session_id" db:"session_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// Upload metadata
	UploadMediaType string  `json:"upload_media_type" db:"upload_media_type"`
	UploadSize      int64   `json:"upload_size" db:"upload_size"`
	AudioHash       string  `json:"audio_hash" db:"audio_hash"`
	AudioDuration   float64 `json:"audio_duration" db:"audio_duration"`
	AnswerArtifact  string  `json:"answer_artifact" db:"answer_artifact"`

	// Processing results
	Transcription string `json:"transcription" db:"transcription"`
	Summary       string `json:"summary" db:"summary"`

	// Advance
	QuestionIndex  int    `json:"question_index" db:"question_index"`
	NextQuestion   string `json:"next_question" db:"next_question"`
	Finished       bool   `json:"finished" db:"finished"`
	SpeechArtifact string `json:"speech_artifact" db:"speech_artifact"`

	Failures       []StageFailure `json:"failures,omitempty" db:"failures"`
	ProcessingTime int64          `json:"processing_time_ms" db:"processing_time_ms"`
}

// NewTurnEvent creates a new TurnEvent with generated UUID and current timestamp
func NewTurnEvent(sessionID string) *TurnEvent {
	return &TurnEvent{
		UUID:      uuid.NewString(),
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

// SetUpload sets metadata about the raw answer upload
func (te *TurnEvent) SetUpload(mediaType string, size int64, hash string) {
	te.UploadMediaType = mediaType
	te.UploadSize = size
	te.AudioHash = hash
}

// SetAdvance records the question the turn advanced to
func (te *TurnEvent) SetAdvance(index int, question string, finished bool) {
	te.QuestionIndex = index
	te.NextQuestion = question
	te.Finished = finished
}

// AddFailure records a degraded stage
func (te *TurnEvent) AddFailure(stage string, err error) {
	if err == nil {
		return
	}
	te.Failures = append(te.Failures, StageFailure{Stage: stage, Reason: err.Error()})
}

// Complete stamps the total processing time
func (te *TurnEvent) Complete() {
	te.ProcessingTime = time.Since(te.Timestamp).Milliseconds()
}

// Degraded reports whether any stage fell back to its default
func (te *TurnEvent) Degraded() bool {
	return len(te.Failures) > 0
}

// FailuresJSON returns failures as JSON string for database storage
func (te *TurnEvent) FailuresJSON() (string, error) {
	if len(te.Failures) == 0 {
		return "[]", nil
	}

	data, err := json.Marshal(te.Failures)
	if err != nil {
		return "", fmt.Errorf("failed to marshal failures: %w", err)
	}

	return string(data), nil
}

// SetFailuresFromJSON parses JSON string and sets failures
func (te *TurnEvent) SetFailuresFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "[]" {
		te.Failures = nil
		return nil
	}

	var failures []StageFailure
	if err := json.Unmarshal([]byte(jsonStr), &failures); err != nil {
		return fmt.Errorf("failed to unmarshal failures JSON: %w", err)
	}

	te.Failures = failures
	return nil
}

// IsValid performs basic validation on the turn event
func (te *TurnEvent) IsValid() error {
	if te.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	if te.SessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	if te.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if te.QuestionIndex < 0 {
		return fmt.Errorf("question index cannot be negative")
	}

	return nil
}

// String returns a human-readable representation of the turn event
func (te *TurnEvent) String() string {
	return fmt.Sprintf("TurnEvent{UUID: %s, SessionID: %s, QuestionIndex: %d, Transcription: %q, Degraded: %t}",
		te.UUID, te.SessionID, te.QuestionIndex, te.Transcription, te.Degraded())
}

// SessionFinishedEvent is emitted once when a session asks its last question
type SessionFinishedEvent struct {
	SessionID      string    `json:"session_id"`
	TotalQuestions int       `json:"total_questions"`
	Timestamp      time.Time `json:"timestamp"`
}
