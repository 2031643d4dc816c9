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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-interviewer/internal/api"
	"github.com/loqalabs/loqa-interviewer/internal/artifacts"
	"github.com/loqalabs/loqa-interviewer/internal/audio"
	"github.com/loqalabs/loqa-interviewer/internal/capabilities"
	"github.com/loqalabs/loqa-interviewer/internal/config"
	"github.com/loqalabs/loqa-interviewer/internal/interview"
	"github.com/loqalabs/loqa-interviewer/internal/logging"
	"github.com/loqalabs/loqa-interviewer/internal/messaging"
)

const (
	internalErrorDetail = "Internal error. Contact the administrator."
	audioNotFoundDetail = "Audio file not found"

	// multipartSlack lets a form whose file part is just over the limit be
	// parsed far enough to report the size rejection
	multipartSlack = 1 << 20
)

// AnswerProcessor runs the turn pipeline for one uploaded answer
type AnswerProcessor interface {
	ProcessAnswer(ctx context.Context, session *interview.Session, upload interview.Upload) (interview.TurnResult, error)
}

// MessagingStatus reports the event publisher for /api/health
type MessagingStatus interface {
	Status() messaging.ConnectionStatus
}

// Dependencies are the components the HTTP surface is wired to
type Dependencies struct {
	Registry *interview.Registry
	Pipeline AnswerProcessor
	Store    *artifacts.Store
	Turns    api.TurnsReader // optional

	Capabilities *capabilities.Detector // optional
	Messaging    MessagingStatus        // optional
}

// Server is the interview HTTP API
type Server struct {
	cfg     *config.Config
	deps    Dependencies
	mux     *http.ServeMux
	handler http.Handler
	server  *http.Server
}

// New creates the server and registers its routes
func New(cfg *config.Config, deps Dependencies) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mux:  http.NewServeMux(),
	}

	s.routes()
	s.handler = recoverPanics(cors(cfg, s.mux))

	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Stop is called
func (s *Server) Start() error {
	logging.Sugar.Infow("🚀 Interviewer starting",
		"addr", s.server.Addr,
		"environment", s.cfg.Environment,
		"questions", s.deps.Registry.Default().Len())

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	logging.Sugar.Infow("🛑 Shutting down interviewer")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logging.Sugar.Infow("✅ Interviewer shut down successfully")
	return nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/health", s.handleDetailedHealth)
	s.mux.HandleFunc("GET /next_question", s.handleNextQuestion)
	s.mux.HandleFunc("POST /answer", s.handleAnswer)
	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /play_audio/{filename}", s.handlePlayAudio)

	if s.deps.Turns != nil {
		turns := api.NewTurnsHandler(s.deps.Turns)
		s.mux.HandleFunc("GET /api/turns", turns.HandleList)
		s.mux.HandleFunc("GET /api/turns/{id}", turns.HandleGet)
	}

	if dir := s.cfg.Server.FrontendDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			s.mux.Handle("GET /", http.FileServer(http.Dir(dir)))
			logging.Sugar.Infow("🌐 Serving frontend", "dir", dir)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "API is running",
	})
}

func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":   "ok",
		"env":      s.cfg.Environment,
		"debug":    s.cfg.Debug,
		"sessions": s.deps.Registry.Len(),
	}

	if usage, err := s.deps.Store.Usage(); err != nil {
		logging.LogWarn("Failed to read artifact disk usage", zap.Error(err))
	} else {
		health["artifacts"] = usage
	}

	if s.deps.Messaging != nil {
		health["messaging"] = s.deps.Messaging.Status()
	}

	if s.deps.Capabilities != nil {
		snapshot := s.deps.Capabilities.Snapshot()
		health["capabilities"] = snapshot
		if snapshot.Degraded {
			health["status"] = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	q := session.Next()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"question":       q.Text,
		"question_index": q.Index,
		"finished":       q.Finished,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.deps.Registry.Create()
	if err != nil {
		if errors.Is(err, interview.ErrTooManySessions) {
			logging.LogWarn("Session limit reached", zap.Int("sessions", s.deps.Registry.Len()))
			writeDetail(w, http.StatusServiceUnavailable, "Too many active sessions")
			return
		}
		s.internalError(w, err, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id":      session.ID(),
		"total_questions": session.Len(),
		"created_at":      session.CreatedAt(),
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	maxBytes := s.cfg.Server.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartSlack)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusBadRequest, audio.TooLarge(maxBytes).Reason)
			return
		}
		writeDetail(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Missing audio file")
		return
	}
	defer file.Close()

	mediaType, err := audio.ValidateUpload(header.Header.Get("Content-Type"), header.Size, maxBytes)
	if err != nil {
		var verr *audio.ValidationError
		if errors.As(err, &verr) {
			logging.Logger.Info("Upload rejected",
				zap.String("session_id", session.ID()),
				zap.String("reason", verr.Reason),
			)
			writeDetail(w, http.StatusBadRequest, verr.Reason)
			return
		}
		s.internalError(w, err, "Upload validation failed")
		return
	}

	result, err := s.deps.Pipeline.ProcessAnswer(r.Context(), session, interview.Upload{
		Body:      file,
		MediaType: mediaType,
		Size:      header.Size,
	})
	if err != nil {
		s.internalError(w, err, "Failed to process answer",
			zap.String("session_id", session.ID()),
			zap.String("media_type", mediaType),
			zap.Int64("size", header.Size),
		)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePlayAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	artifact, err := s.deps.Store.Resolve(name)
	if err != nil {
		if !errors.Is(err, artifacts.ErrNotFound) && !errors.Is(err, artifacts.ErrInvalidName) {
			logging.LogError(err, "Failed to resolve artifact", zap.String("name", logging.Preview(name, 0)))
		}
		writeDetail(w, http.StatusNotFound, audioNotFoundDetail)
		return
	}

	f, err := os.Open(artifact.Path)
	if err != nil {
		writeDetail(w, http.StatusNotFound, audioNotFoundDetail)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.internalError(w, err, "Failed to stat artifact", zap.String("name", artifact.Name))
		return
	}

	w.Header().Set("Content-Type", artifact.MediaType)
	http.ServeContent(w, r, artifact.Name, info.ModTime(), f)
}

// session resolves ?session=, writing a 404 for unknown ids
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*interview.Session, bool) {
	id := r.URL.Query().Get("session")
	session, err := s.deps.Registry.Get(id)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return session, true
}

func (s *Server) internalError(w http.ResponseWriter, err error, message string, fields ...zap.Field) {
	logging.LogError(err, message, fields...)
	writeDetail(w, http.StatusInternalServerError, internalErrorDetail)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Sugar.Errorw("Failed to write response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
