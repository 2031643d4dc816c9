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

package messaging

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-interviewer/internal/config"
	"github.com/loqalabs/loqa-interviewer/internal/events"
)

// MockNATSConnection records published messages without a server
type MockNATSConnection struct {
	mu        sync.Mutex
	messages  map[string][][]byte
	errors    map[string]error
	connected bool
	stats     nats.Statistics
}

func NewMockNATSConnection() *MockNATSConnection {
	return &MockNATSConnection{
		messages:  make(map[string][][]byte),
		errors:    make(map[string]error),
		connected: true,
	}
}

func (m *MockNATSConnection) Publish(subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return errors.New("nats: connection closed")
	}
	if err, ok := m.errors[subject]; ok {
		return err
	}
	m.messages[subject] = append(m.messages[subject], data)
	m.stats.OutMsgs++
	m.stats.OutBytes += uint64(len(data))
	return nil
}

func (m *MockNATSConnection) Stats() nats.Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *MockNATSConnection) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockNATSConnection) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockNATSConnection) SetError(subject string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[subject] = err
}

func (m *MockNATSConnection) Messages(subject string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[subject]
}

func newTestService(t *testing.T) (*NATSService, *MockNATSConnection) {
	t.Helper()
	service, err := NewNATSService(config.NATSConfig{URL: "nats://localhost:4222"})
	require.NoError(t, err)
	conn := NewMockNATSConnection()
	service.conn = conn
	return service, conn
}

func TestNewNATSService_RequiresURL(t *testing.T) {
	_, err := NewNATSService(config.NATSConfig{})
	assert.Error(t, err)
}

func TestPublishTurn(t *testing.T) {
	service, conn := newTestService(t)

	turn := events.NewTurnEvent("s1")
	turn.Transcription = "hello"
	turn.SetAdvance(2, "Q2", false)
	turn.AddFailure("summarize", errors.New("timeout"))

	require.NoError(t, service.PublishTurn(turn))

	published := conn.Messages(SubjectTurnCompleted)
	require.Len(t, published, 1)

	var decoded events.TurnEvent
	require.NoError(t, json.Unmarshal(published[0], &decoded))
	assert.Equal(t, turn.UUID, decoded.UUID)
	assert.Equal(t, "hello", decoded.Transcription)
	assert.Equal(t, 2, decoded.QuestionIndex)
	assert.Equal(t, []events.StageFailure{{Stage: "summarize", Reason: "timeout"}}, decoded.Failures)
}

func TestPublishSessionFinished(t *testing.T) {
	service, conn := newTestService(t)

	finished := &events.SessionFinishedEvent{SessionID: "s1", TotalQuestions: 5, Timestamp: time.Now()}
	require.NoError(t, service.PublishSessionFinished(finished))

	published := conn.Messages(SubjectSessionFinished)
	require.Len(t, published, 1)
	assert.JSONEq(t, `"s1"`, mustField(t, published[0], "session_id"))
	assert.JSONEq(t, `5`, mustField(t, published[0], "total_questions"))
	assert.Empty(t, conn.Messages(SubjectTurnCompleted))
}

func TestPublish_ErrorScenarios(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(*NATSService, *MockNATSConnection)
		errorContains string
	}{
		{
			name: "not connected",
			setup: func(s *NATSService, _ *MockNATSConnection) {
				s.conn = nil
			},
			errorContains: "not established",
		},
		{
			name: "connection closed",
			setup: func(_ *NATSService, conn *MockNATSConnection) {
				conn.Close()
			},
			errorContains: "connection closed",
		},
		{
			name: "publish error",
			setup: func(_ *NATSService, conn *MockNATSConnection) {
				conn.SetError(SubjectTurnCompleted, errors.New("slow consumer"))
			},
			errorContains: SubjectTurnCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, conn := newTestService(t)
			tt.setup(service, conn)

			err := service.PublishTurn(events.NewTurnEvent("s1"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestConnectionState(t *testing.T) {
	service, conn := newTestService(t)
	assert.True(t, service.IsConnected())

	service.Close()
	assert.False(t, conn.IsConnected())
	assert.False(t, service.IsConnected())

	assert.False(t, service.Status().Connected)
}

func TestStatus(t *testing.T) {
	unconnected, err := NewNATSService(config.NATSConfig{URL: "nats://localhost:4222"})
	require.NoError(t, err)
	assert.Equal(t, ConnectionStatus{}, unconnected.Status())

	service, conn := newTestService(t)
	require.NoError(t, service.PublishTurn(events.NewTurnEvent("s1")))
	require.NoError(t, service.PublishSessionFinished(&events.SessionFinishedEvent{SessionID: "s1", TotalQuestions: 2}))

	status := service.Status()
	assert.True(t, status.Connected)
	assert.Equal(t, uint64(2), status.Published)

	var written uint64
	for _, subject := range []string{SubjectTurnCompleted, SubjectSessionFinished} {
		for _, msg := range conn.Messages(subject) {
			written += uint64(len(msg))
		}
	}
	assert.Equal(t, written, status.BytesOut)
	assert.Zero(t, status.Reconnects)
}

func TestConnect_UnreachableServer(t *testing.T) {
	service, err := NewNATSService(config.NATSConfig{URL: "nats://127.0.0.1:1", MaxReconnect: 0})
	require.NoError(t, err)

	err = service.Connect()
	assert.Error(t, err)
	assert.False(t, service.IsConnected())
}

func mustField(t *testing.T, data []byte, key string) string {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	return string(fields[key])
}
