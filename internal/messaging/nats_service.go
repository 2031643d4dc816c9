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
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-interviewer/internal/config"
	"github.com/loqalabs/loqa-interviewer/internal/events"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

// NATS subjects for interview events
const (
	SubjectTurnCompleted   = "interview.turns.completed"
	SubjectSessionFinished = "interview.sessions.finished"
)

// ErrNotConnected is returned when publishing before Connect succeeded
var ErrNotConnected = errors.New("NATS connection not established")

// publisher is the part of *nats.Conn the service publishes through
type publisher interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
	Stats() nats.Statistics
	Close()
}

// NATSService publishes interview events to NATS
type NATSService struct {
	config config.NATSConfig
	conn   publisher
}

// NewNATSService creates a new NATS service instance
func NewNATSService(cfg config.NATSConfig) (*NATSService, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("NATS URL must be provided")
	}
	return &NATSService{config: cfg}, nil
}

// Connect establishes connection to NATS server
func (ns *NATSService) Connect() error {
	logging.Sugar.Infof("🔌 Connecting to NATS at %s", ns.config.URL)

	opts := []nats.Option{
		nats.Name("loqa-interviewer"),
		nats.ReconnectWait(ns.config.ReconnectWait),
		nats.MaxReconnects(ns.config.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("⚠️  NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Sugar.Infof("🔄 NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.Sugar.Info("🔌 NATS connection closed")
		}),
	}

	nc, err := nats.Connect(ns.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ns.conn = nc
	logging.Sugar.Infof("✅ Connected to NATS server at %s", nc.ConnectedUrl())
	return nil
}

// PublishTurn publishes a processed turn
func (ns *NATSService) PublishTurn(event *events.TurnEvent) error {
	if err := ns.publishJSON(SubjectTurnCompleted, event); err != nil {
		return err
	}

	logging.LogNATSEvent(SubjectTurnCompleted, "publish",
		zap.String("turn_id", event.UUID),
		zap.String("session_id", event.SessionID),
		zap.Bool("degraded", event.Degraded()),
	)
	return nil
}

// PublishSessionFinished publishes the end of an interview session
func (ns *NATSService) PublishSessionFinished(event *events.SessionFinishedEvent) error {
	if err := ns.publishJSON(SubjectSessionFinished, event); err != nil {
		return err
	}

	logging.LogNATSEvent(SubjectSessionFinished, "publish",
		zap.String("session_id", event.SessionID),
		zap.Int("total_questions", event.TotalQuestions),
	)
	return nil
}

func (ns *NATSService) publishJSON(subject string, v interface{}) error {
	if ns.conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}

	if err := ns.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close closes the NATS connection
func (ns *NATSService) Close() {
	if ns.conn != nil {
		ns.conn.Close()
	}
}

// IsConnected returns true if connected to NATS
func (ns *NATSService) IsConnected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}

// ConnectionStatus summarises the publisher for health reporting
type ConnectionStatus struct {
	Connected  bool   `json:"connected"`
	Published  uint64 `json:"published"`
	BytesOut   uint64 `json:"bytes_out"`
	Reconnects uint64 `json:"reconnects"`
}

// Status reports connectivity and publish counters
func (ns *NATSService) Status() ConnectionStatus {
	if ns.conn == nil {
		return ConnectionStatus{}
	}

	stats := ns.conn.Stats()
	return ConnectionStatus{
		Connected:  ns.conn.IsConnected(),
		Published:  stats.OutMsgs,
		BytesOut:   stats.OutBytes,
		Reconnects: stats.Reconnects,
	}
}
