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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-interviewer/internal/events"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
	"github.com/loqalabs/loqa-interviewer/internal/storage"
)

const maxPageSize = 100

// TurnsReader is the read side of the turn journal
type TurnsReader interface {
	List(ctx context.Context, options storage.ListOptions) ([]*events.TurnEvent, error)
	Count(ctx context.Context, sessionID string) (int64, error)
	GetByUUID(ctx context.Context, uuid string) (*events.TurnEvent, error)
}

// TurnsHandler serves the read-only turn journal
type TurnsHandler struct {
	store TurnsReader
}

// NewTurnsHandler creates a new turns handler
func NewTurnsHandler(store TurnsReader) *TurnsHandler {
	return &TurnsHandler{store: store}
}

// ListTurnsResponse represents the response for listing turns
type ListTurnsResponse struct {
	Turns      []*events.TurnEvent `json:"turns"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
}

// HandleList handles GET /api/turns
func (h *TurnsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := max(parseIntParam(query.Get("page"), 1), 1)
	pageSize := parseIntParam(query.Get("page_size"), parseIntParam(query.Get("limit"), 20))
	pageSize = min(max(pageSize, 1), maxPageSize)

	options := storage.ListOptions{
		SessionID: query.Get("session"),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	}

	total, err := h.store.Count(r.Context(), options.SessionID)
	if err != nil {
		logging.LogError(err, "Failed to count turns")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	turns, err := h.store.List(r.Context(), options)
	if err != nil {
		logging.LogError(err, "Failed to list turns")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	logging.Logger.Debug("Turns API request",
		zap.String("session_id", options.SessionID),
		zap.Int("page", page),
		zap.Int("page_size", pageSize),
		zap.Int64("total_results", total),
	)

	writeJSON(w, http.StatusOK, ListTurnsResponse{
		Turns:      turns,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	})
}

// HandleGet handles GET /api/turns/{id}
func (h *TurnsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Turn ID is required")
		return
	}

	turn, err := h.store.GetByUUID(r.Context(), id)
	if errors.Is(err, storage.ErrTurnNotFound) {
		writeError(w, http.StatusNotFound, "Turn not found")
		return
	}
	if err != nil {
		logging.LogError(err, "Failed to get turn", zap.String("uuid", id))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, turn)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.LogError(err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// parseIntParam parses integer parameter with default value
func parseIntParam(param string, defaultValue int) int {
	if param == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(param); err == nil {
		return value
	}
	return defaultValue
}
