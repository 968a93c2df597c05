package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/npmwatch/npmwatch/internal/core/watch"
	apperrors "github.com/npmwatch/npmwatch/internal/errors"
	"github.com/npmwatch/npmwatch/internal/observability"
	"github.com/npmwatch/npmwatch/internal/server/handlers"
	servermw "github.com/npmwatch/npmwatch/internal/server/middleware"
)

// Server is the HTTP host for the watch node.
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	watch  *handlers.WatchHandler
	health *handlers.HealthManager
}

// Option configures a Server.
type Option func(*Server)

// WithWatchNode serves POST /v1/watch with node. continueOnFail is the
// default for requests that do not set it.
func WithWatchNode(node *watch.Node, continueOnFail bool) Option {
	return func(s *Server) {
		s.watch = &handlers.WatchHandler{Node: node, ContinueOnFail: continueOnFail}
	}
}

// WithHealthManager replaces the default health manager, usually to register
// checkers.
func WithHealthManager(manager *handlers.HealthManager) Option {
	return func(s *Server) {
		if manager != nil {
			s.health = manager
		}
	}
}

// WithTimeouts sets the http.Server timeouts. Zero values keep the defaults.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if idle > 0 {
			s.idleTimeout = idle
		}
	}
}

// New creates a new HTTP server instance
func New(host string, port int, opts ...Option) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)

	// RequestID must run first so metrics, logs and envelopes share the id.
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:       r,
		host:         host,
		port:         port,
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		idleTimeout:  120 * time.Second,
		health:       handlers.NewHealthManager(handlers.AppVersion),
	}
	for _, opt := range opts {
		opt(s)
	}

	handlers.SetHTTPErrorResponder(HandleError)
	s.registerRoutes()

	return s
}

// HandleError writes err as an error envelope. Handlers and the router's
// fallback routes all respond through it.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", s.host),
			zap.Int("port", s.port),
			zap.String("addr", addr),
			zap.Bool("watch_enabled", s.watch != nil))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}

// Health returns the health manager so callers can register checkers.
func (s *Server) Health() *handlers.HealthManager {
	return s.health
}
