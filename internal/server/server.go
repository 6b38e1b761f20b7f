// Package server is the HTTP inbound layer: the one transport the core
// pipeline is driven through (spec.md §6). Authentication, project/key
// management, and everything else spec.md §1 lists as "HTTP/REST transport
// layer" stay external collaborators — this package only implements the
// handful of contracts the Buffer Controller and Session-Message Consumer
// need (accept a message, list a transcript), grounded on the teacher's
// internal/server/server.go router/middleware shape.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/acontext-run/runtime/internal/coordination"
	"github.com/acontext-run/runtime/internal/mq"
	"github.com/acontext-run/runtime/internal/sessionmessage"
	"github.com/acontext-run/runtime/internal/storage"
	"github.com/acontext-run/runtime/pkg/types"
)

// Config holds HTTP-layer configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the teacher's timeout/CORS defaults, retargeted to
// this runtime's port.
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the container passed to every handler (spec.md §9's "container
// struct instead of globals" design note) — constructed once in
// cmd/acontext-server and never reconstructed per request.
type Server struct {
	cfg     Config
	router  *chi.Mux
	httpSrv *http.Server

	db       *storage.Gateway
	coord    *coordination.Store
	mq       *mq.Bus
	consumer *sessionmessage.Consumer
	defaults types.ProjectConfig
}

// New builds a Server wired to the process-wide Gateway/Store/Bus and
// registers every route.
func New(cfg Config, db *storage.Gateway, coord *coordination.Store, bus *mq.Bus, consumer *sessionmessage.Consumer, defaults types.ProjectConfig) *Server {
	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		db:       db,
		coord:    coord,
		mq:       bus,
		consumer: consumer,
		defaults: defaults,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.cfg.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Post("/messages", s.sendMessage)
			r.Get("/messages", s.getMessages)
			r.Post("/flush", s.flushSession)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler exposes the root http.Handler, e.g. for httptest.NewServer in
// tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens and serves, blocking until Shutdown is called or a fatal
// listener error occurs.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
