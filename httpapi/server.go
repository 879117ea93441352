// Package httpapi exposes the message bus over HTTP for local UI
// surfaces. Every operation goes through the dispatcher, so the HTTP
// layer never grows behaviour of its own.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linkeep/linkeep/bus"
	"github.com/linkeep/linkeep/store"
)

const defaultMaxBody = 10 << 20

// Server bridges HTTP requests onto the bus dispatcher, plus a couple
// of read-only convenience routes backed by the store.
type Server struct {
	dispatcher *bus.Dispatcher
	bookmarks  *store.Store
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server. bookmarks may be nil, in which case the
// bookmark read routes return 404.
func New(d *bus.Dispatcher, bookmarks *store.Store, opts ...Option) *Server {
	s := &Server{
		dispatcher: d,
		bookmarks:  bookmarks,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders())
	r.Use(MaxBody(defaultMaxBody))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/message", s.handleMessage)
	r.Get("/api/bookmarks/{bookmarkID}", s.handleGetBookmark)

	return r
}

// handleMessage decodes one bus message and dispatches it. The envelope
// always goes back with status 200: protocol failures live inside the
// envelope, not on the HTTP layer.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg bus.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if msg.Type == "" {
		writeError(w, http.StatusBadRequest, errors.New("message type is required"))
		return
	}

	env := s.dispatcher.Dispatch(r.Context(), msg)
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleGetBookmark(w http.ResponseWriter, r *http.Request) {
	if s.bookmarks == nil {
		writeError(w, http.StatusNotFound, errors.New("bookmark store not configured"))
		return
	}
	id := chi.URLParam(r, "bookmarkID")
	bm, err := s.bookmarks.GetBookmark(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error("httpapi: get bookmark", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, bm)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
