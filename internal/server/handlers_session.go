package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CreateSessionRequest is POST /sessions's body (spec.md §6).
type CreateSessionRequest struct {
	ProjectID           string `json:"project_id"`
	Title               string `json:"title,omitempty"`
	DisableTaskTracking bool   `json:"disable_task_tracking"`
}

// createSession handles POST /sessions.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	if req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required", "")
		return
	}

	session, err := s.db.Sessions.Create(r.Context(), req.ProjectID, req.DisableTaskTracking)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session", err.Error())
		return
	}

	if req.Title != "" {
		if err := s.db.Sessions.SetDisplayTitle(r.Context(), session.ID, req.Title); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to set session title", err.Error())
			return
		}
		session.Title = req.Title
	}

	writeJSON(w, http.StatusOK, session)
}

// getSession handles GET /sessions/{sessionID}, used by tests and the
// manual-flush caller to confirm a session exists before flushing it.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := s.db.Sessions.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// flushSession handles POST /sessions/{sessionID}/flush: the bounded-retry
// path a caller uses to force-process a session's pending messages without
// waiting out the buffer timer (spec.md §4.1's manual-flush escape hatch).
func (s *Server) flushSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := s.db.Sessions.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found", err.Error())
		return
	}

	if aerr := s.consumer.FlushManually(r.Context(), session.ProjectID, sessionID); aerr != nil {
		writeAPIErr(w, aerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}
