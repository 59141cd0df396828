// Package server exposes the session and turn API over HTTP.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/sidekick/logging"
	"github.com/hupe1980/sidekick/session"
)

// Server routes session lifecycle and turn requests to the session manager.
type Server struct {
	manager *session.Manager
	logger  logging.Logger
	router  chi.Router
}

// New creates the HTTP server around a session manager.
func New(manager *session.Manager, logger logging.Logger) *Server {
	s := &Server{
		manager: manager,
		logger:  logging.OrNoOp(logger),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/turn", s.handleRunTurn)
			r.Delete("/", s.handleDisposeSession)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type turnRequest struct {
	Message         string                    `json:"message"`
	SuccessCriteria string                    `json:"success_criteria,omitempty"`
	History         []session.TranscriptEntry `json:"history,omitempty"`
}

type turnResponse struct {
	History []session.TranscriptEntry `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Create(r.Context())
	if err != nil {
		s.logger.Error("session creation failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create session"})
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID()})
}

func (s *Server) handleRunTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, ok := s.manager.Get(sessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message must not be empty"})
		return
	}

	history, err := sess.RunTurn(r.Context(), req.Message, req.SuccessCriteria, req.History)
	if err != nil {
		s.logger.Error("turn failed", "session_id", sessionID, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "turn execution failed"})
		return
	}

	writeJSON(w, http.StatusOK, turnResponse{History: history})
}

func (s *Server) handleDisposeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, ok := s.manager.Get(sessionID); !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}

	s.manager.Dispose(r.Context(), sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
