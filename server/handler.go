// Package server exposes the planner over a JSON HTTP API. Every route
// except the health probe sits behind the auth middleware; all store
// queries are scoped by the authenticated principal.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/auth"
	"github.com/cyp0633/planner/server/schedule"
	"github.com/cyp0633/planner/server/storage"
)

const (
	headerContentType = "Content-Type"
	mimeTypeJSON      = "application/json; charset=utf-8"
	mimeTypeCalendar  = "text/calendar; charset=utf-8"

	maxTextLength = 300
)

// Handler routes planner API requests
type Handler struct {
	rules   storage.RuleStore
	tasks   storage.TaskStore
	engine  *schedule.Engine
	logger  *slog.Logger
	realm   string
	handler http.Handler
}

// Option represents a configuration option for the Handler
type Option func(*Handler)

// WithLogger sets the logger for the handler and its engine
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRealm sets the Basic Auth realm
func WithRealm(realm string) Option {
	return func(h *Handler) {
		if realm != "" {
			h.realm = realm
		}
	}
}

// NewHandler creates the planner API handler on top of the given stores
// and authenticator.
func NewHandler(rules storage.RuleStore, tasks storage.TaskStore, authenticator auth.Authenticator, opts ...Option) *Handler {
	h := &Handler{
		rules:  rules,
		tasks:  tasks,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		realm:  "Planner",
	}
	for _, opt := range opts {
		opt(h)
	}
	h.engine = schedule.NewEngine(rules, tasks, schedule.WithLogger(h.logger))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/tasks", h.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{date}", h.handleListDay)
	mux.HandleFunc("POST /api/tasks", h.handleCreateTask)
	mux.HandleFunc("POST /api/tasks/materialize", h.handleMaterialize)
	mux.HandleFunc("PATCH /api/tasks/{id}", h.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.handleDeleteTask)
	mux.HandleFunc("GET /api/recurring", h.handleListRules)
	mux.HandleFunc("POST /api/recurring", h.handleCreateRule)
	mux.HandleFunc("DELETE /api/recurring/{id}", h.handleDeleteRule)
	mux.HandleFunc("GET /api/feed.ics", h.handleFeed)

	h.handler = auth.Middleware(authenticator, h.realm)(mux)

	return h
}

// ServeHTTP implements http.Handler interface
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("received request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	h.handler.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// principal returns the authenticated owner id. The middleware guarantees
// it is present on every route but the health probe.
func (h *Handler) principal(r *http.Request) string {
	if p := auth.GetPrincipalFromContext(r.Context()); p != nil {
		return p.ID
	}
	return ""
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, mimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps engine and storage failures onto HTTP statuses:
// malformed dates and out-of-order ranges are client errors, missing or
// foreign-owned resources are 404s, occupied slots are conflicts, and
// everything else is a 500. No error here is fatal to the process.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var derr *dateutil.Error
	if errors.As(err, &derr) {
		h.writeErrorMessage(w, http.StatusBadRequest, derr.Message)
		return
	}

	var serr *schedule.Error
	if errors.As(err, &serr) {
		switch serr.Type {
		case schedule.ErrInvalidRange:
			h.writeErrorMessage(w, http.StatusBadRequest, serr.Message)
		case schedule.ErrNotFound:
			h.writeErrorMessage(w, http.StatusNotFound, "not found")
		case schedule.ErrDuplicateOccurrence:
			h.writeErrorMessage(w, http.StatusConflict, serr.Message)
		default:
			h.internalError(w, err)
		}
		return
	}

	var sterr *storage.Error
	if errors.As(err, &sterr) {
		switch sterr.Type {
		case storage.ErrNotFound:
			h.writeErrorMessage(w, http.StatusNotFound, "not found")
		case storage.ErrInvalidInput:
			h.writeErrorMessage(w, http.StatusBadRequest, sterr.Message)
		case storage.ErrAlreadyExists:
			h.writeErrorMessage(w, http.StatusConflict, sterr.Message)
		default:
			h.internalError(w, err)
		}
		return
	}

	h.internalError(w, err)
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("internal error", "error", err)
	h.writeErrorMessage(w, http.StatusInternalServerError, "internal error")
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeErrorMessage(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func validText(text string) bool {
	return len(text) >= 1 && len(text) <= maxTextLength
}
