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

package interview

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultClosingMessage is returned by every advance once all questions were asked
const DefaultClosingMessage = "Thank you for participating"

// Question is the result of one advance of a session
type Question struct {
	Text string
	// Index is the cursor after the advance
	Index int
	// Finished is true when Text is the closing message
	Finished bool
}

// Session walks an immutable, ordered question list. The cursor only moves
// forward and stops at len(questions), after which every advance returns
// the closing message without changing state.
type Session struct {
	id        string
	questions []string
	closing   string
	createdAt time.Time

	mu         sync.Mutex
	cursor     int
	lastActive time.Time
}

// NewSession creates a session over a private copy of questions. An empty
// id gets a random one and an empty closing message gets the default.
func NewSession(id string, questions []string, closing string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if closing == "" {
		closing = DefaultClosingMessage
	}

	owned := make([]string, len(questions))
	copy(owned, questions)

	now := time.Now()
	return &Session{
		id:         id,
		questions:  owned,
		closing:    closing,
		createdAt:  now,
		lastActive: now,
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was created
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// LastActive returns when the session was last read or advanced
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Len returns the number of questions
func (s *Session) Len() int {
	return len(s.questions)
}

// Cursor returns how many questions have been asked
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// IsFinished reports whether every question has been asked
func (s *Session) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor == len(s.questions)
}

// Next returns the current question and advances the cursor, or the closing
// message once finished
func (s *Session) Next() Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	q := s.peekLocked()
	if !q.Finished {
		s.cursor++
	}
	return q
}

// Peek returns what Next would return without advancing
func (s *Session) Peek() Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	return s.peekLocked()
}

func (s *Session) peekLocked() Question {
	if s.cursor == len(s.questions) {
		return Question{Text: s.closing, Index: s.cursor, Finished: true}
	}
	return Question{Text: s.questions[s.cursor], Index: s.cursor + 1}
}
