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
	"errors"
	"sync"
	"time"

	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

// DefaultSessionID addresses the session that exists from startup
const DefaultSessionID = "default"

var (
	// ErrSessionNotFound is returned for an unknown session id
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned by Create once the registry is full
	ErrTooManySessions = errors.New("too many active sessions")
)

// Registry owns the live interview sessions of this process. Sessions are
// kept in memory only.
type Registry struct {
	questions   []string
	closing     string
	maxSessions int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithMaxSessions caps the live sessions, the default one included.
// Zero or less leaves the registry unbounded.
func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) { r.maxSessions = n }
}

// NewRegistry creates a registry holding the default session
func NewRegistry(questions []string, closing string, opts ...RegistryOption) *Registry {
	r := &Registry{
		questions: questions,
		closing:   closing,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sessions[DefaultSessionID] = NewSession(DefaultSessionID, questions, closing)
	return r
}

// Default returns the session used when a request names none
func (r *Registry) Default() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[DefaultSessionID]
}

// Create starts a new interview over the configured questions
func (r *Registry) Create() (*Session, error) {
	session := NewSession("", r.questions, r.closing)

	r.mu.Lock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		return nil, ErrTooManySessions
	}
	r.sessions[session.ID()] = session
	live := len(r.sessions)
	r.mu.Unlock()

	logging.Sugar.Infow("Interview session created",
		"session_id", session.ID(),
		"total_questions", session.Len(),
		"live_sessions", live,
	)

	return session, nil
}

// Get looks up a session. An empty id resolves to the default session.
func (r *Registry) Get(id string) (*Session, error) {
	if id == "" {
		id = DefaultSessionID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Evict drops created sessions not used since now-idle. The default session
// is never evicted. It returns how many sessions were removed.
func (r *Registry) Evict(idle time.Duration, now time.Time) int {
	cutoff := now.Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, session := range r.sessions {
		if id == DefaultSessionID || session.LastActive().After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}

	if evicted > 0 {
		logging.Sugar.Infow("Idle interview sessions evicted",
			"evicted", evicted,
			"live_sessions", len(r.sessions),
		)
	}
	return evicted
}
