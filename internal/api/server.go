// Package api serves the session command and status surface over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/banshee-data/marker.place/internal/ar/scenegraph"
	"github.com/banshee-data/marker.place/internal/ar/session"
	"github.com/banshee-data/marker.place/internal/db"
	"github.com/banshee-data/marker.place/internal/metrics"
	"github.com/banshee-data/marker.place/internal/monitoring"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// commandTimeout bounds how long a command waits for the session loop.
const commandTimeout = 5 * time.Second

// JournalReader is the read side of the session journal.
type JournalReader interface {
	List(ctx context.Context, sessionID string, limit int) ([]session.Entry, error)
	Sessions(ctx context.Context) ([]db.SessionSummary, error)
}

// Option configures a Server.
type Option func(*Server)

// WithScene exposes the scene graph on /api/scene.
func WithScene(g *scenegraph.Graph) Option {
	return func(s *Server) { s.scene = g }
}

// WithJournal exposes the journal on /api/journal and /api/sessions.
func WithJournal(j JournalReader) Option {
	return func(s *Server) { s.journal = j }
}

// WithMetrics serves the registry on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithDebug mounts a mux carrying tsweb debug routes under /debug/.
func WithDebug(mux *http.ServeMux) Option {
	return func(s *Server) { s.debug = mux }
}

// WithMiddlewares adds middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(s *Server) { s.middlewares = append(s.middlewares, mw...) }
}

type Server struct {
	ctrl        *session.Controller
	scene       *scenegraph.Graph
	journal     JournalReader
	metrics     *metrics.Metrics
	debug       *http.ServeMux
	middlewares []func(http.Handler) http.Handler
}

func NewServer(ctrl *session.Controller, opts ...Option) *Server {
	s := &Server{ctrl: ctrl}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	for _, mw := range s.middlewares {
		r.Use(mw)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.showStatus)
		r.Get("/status/stream", s.streamStatus)
		r.Post("/mode", s.setMode)
		r.Post("/reset", s.resetScene)
		r.Post("/place", s.placeAt)
		r.Get("/placed", s.listPlaced)
		r.Get("/anchors", s.listAnchors)
		r.Get("/scene", s.showScene)
		r.Get("/journal", s.listJournal)
		r.Get("/sessions", s.listSessions)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	if s.debug != nil {
		r.Handle("/debug/*", s.debug)
	}
	return r
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		monitoring.Diagf(
			"[%s] %s %s%s%s %vms %s",
			statusCodeColor(ww.Status()), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
			middleware.GetReqID(r.Context()),
		)
	})
}
