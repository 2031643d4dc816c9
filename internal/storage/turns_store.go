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

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-interviewer/internal/events"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

// ErrTurnNotFound is returned when no journal row matches
var ErrTurnNotFound = errors.New("turn not found")

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 100

const turnColumns = `uuid, session_id, timestamp,
	upload_media_type, upload_size, audio_hash, audio_duration, answer_artifact,
	transcription, summary,
	question_index, next_question, finished, speech_artifact,
	failures, processing_time_ms`

// TurnsStore handles database operations for interview turns
type TurnsStore struct {
	db *Database
}

// NewTurnsStore creates a new turns store
func NewTurnsStore(db *Database) *TurnsStore {
	return &TurnsStore{db: db}
}

// RecordTurn stores a processed turn in the journal
func (s *TurnsStore) RecordTurn(ctx context.Context, event *events.TurnEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid turn event: %w", err)
	}

	failuresJSON, err := event.FailuresJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize failures: %w", err)
	}

	query := `INSERT INTO interview_turns (` + turnColumns + `) VALUES (
		?, ?, ?,
		?, ?, ?, ?, ?,
		?, ?,
		?, ?, ?, ?,
		?, ?
	)`

	_, err = s.db.DB().ExecContext(ctx, query,
		event.UUID, event.SessionID, event.Timestamp,
		event.UploadMediaType, event.UploadSize, event.AudioHash, event.AudioDuration, event.AnswerArtifact,
		event.Transcription, event.Summary,
		event.QuestionIndex, event.NextQuestion, event.Finished, event.SpeechArtifact,
		failuresJSON, event.ProcessingTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	logging.LogDatabaseOperation("insert", "interview_turns",
		zap.String("turn_id", event.UUID),
		zap.String("session_id", event.SessionID),
		zap.Int("question_index", event.QuestionIndex),
	)
	return nil
}

// GetByUUID retrieves a turn by its UUID
func (s *TurnsStore) GetByUUID(ctx context.Context, uuid string) (*events.TurnEvent, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT `+turnColumns+` FROM interview_turns WHERE uuid = ?`, uuid)

	event, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTurnNotFound
	}
	return event, err
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	SessionID string
	Limit     int
	Offset    int
}

// List retrieves turns newest first
func (s *TurnsStore) List(ctx context.Context, options ListOptions) ([]*events.TurnEvent, error) {
	query := `SELECT ` + turnColumns + ` FROM interview_turns`
	var args []interface{}

	if options.SessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, options.SessionID)
	}

	limit := options.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, max(options.Offset, 0))

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := make([]*events.TurnEvent, 0)
	for rows.Next() {
		event, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	return turns, nil
}

// Count returns the number of journalled turns, optionally for one session
func (s *TurnsStore) Count(ctx context.Context, sessionID string) (int64, error) {
	query := "SELECT COUNT(*) FROM interview_turns"
	var args []interface{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}

	var count int64
	if err := s.db.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTurn(row rowScanner) (*events.TurnEvent, error) {
	var event events.TurnEvent
	var failuresJSON string

	err := row.Scan(
		&event.UUID, &event.SessionID, &event.Timestamp,
		&event.UploadMediaType, &event.UploadSize, &event.AudioHash, &event.AudioDuration, &event.AnswerArtifact,
		&event.Transcription, &event.Summary,
		&event.QuestionIndex, &event.NextQuestion, &event.Finished, &event.SpeechArtifact,
		&failuresJSON, &event.ProcessingTime,
	)
	if err != nil {
		return nil, err
	}

	if err := event.SetFailuresFromJSON(failuresJSON); err != nil {
		return nil, err
	}

	return &event, nil
}
