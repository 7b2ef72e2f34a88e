// Package api exposes the transcript service over HTTP: message ingestion
// (the live path), session views (live snapshot or batch reconstruction),
// diagnostics, and a websocket stream of view updates.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flitsinc/go-transcript/internal/feed"
	"github.com/flitsinc/go-transcript/internal/idgen"
	"github.com/flitsinc/go-transcript/internal/session"
	"github.com/flitsinc/go-transcript/internal/state"
)

type Server struct {
	Store     *state.Store
	Hub       *feed.Hub
	Registry  *Registry
	StartedAt time.Time
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionItem)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	sessions, err := s.Store.ListSessions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSessionItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errNotFound("session"))
		return
	}
	sessionID := segments[0]
	if len(segments) != 2 {
		writeError(w, http.StatusNotFound, errNotFound("resource"))
		return
	}

	switch segments[1] {
	case "messages":
		s.handleIngest(w, r, sessionID)
	case "view":
		s.handleView(w, r, sessionID)
	case "diagnostics":
		s.handleDiagnostics(w, r, sessionID)
	case "stream":
		s.handleStreamWS(w, r, sessionID)
	default:
		writeError(w, http.StatusNotFound, errNotFound("resource"))
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if err := idgen.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var msg session.Message
	if err := decodeJSON(r.Body, &msg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := s.Registry.Ingest(r.Context(), sessionID, msg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.Hub != nil {
		s.Hub.Publish(feed.Update{SessionID: sessionID, View: view})
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	view, err := s.Registry.View(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	diags, err := s.Registry.Diagnostics(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if diags == nil {
		diags = []session.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, diags)
}

func decodeJSON(body io.Reader, dest any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

type notFoundError struct {
	msg string
}

func (e notFoundError) Error() string { return e.msg }

func errNotFound(target string) error {
	return notFoundError{msg: target + " not found"}
}
