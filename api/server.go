// Package api exposes the conversational engine over HTTP.
//
// Endpoints:
//
//	GET    /health                          liveness probe
//	GET    /ready                           readiness probe (pings the database)
//	GET    /api/conversations               list open conversations
//	POST   /api/conversations               open a conversation
//	GET    /api/conversations/{id}          conversation metadata
//	DELETE /api/conversations/{id}          close a conversation
//	POST   /api/conversations/{id}/reset    clear a conversation's history
//	POST   /api/chat                        run one turn
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints (/health, /ready)
//   - conversation.go: conversation management endpoints
//   - chat.go: turn endpoint
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lawontip/lawontip/internal/log"
	"github.com/lawontip/lawontip/internal/session"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3400"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to shut out slow-client
	// connection exhaustion.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generation with retries can take most of a minute.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum wait for the next request on keep-alive
	// connections.
	IdleTimeout = 120 * time.Second
)

// ServerConfig contains the dependencies of the HTTP server.
type ServerConfig struct {
	Sessions *session.Registry // required
	Engine   TurnProcessor     // required
	Pool     *pgxpool.Pool     // optional: nil degrades /ready to 503
	Logger   log.Logger
}

// Server is the HTTP server for the REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session registry is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()

	health := NewHealthHandler(cfg.Pool, logger)
	conversations := NewConversationHandler(cfg.Sessions, logger)
	chat := NewChatHandler(cfg.Engine, cfg.Sessions, logger)

	health.RegisterRoutes(mux)
	conversations.RegisterRoutes(mux)
	chat.RegisterRoutes(mux)

	return &Server{mux: mux, logger: logger}, nil
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery, then logging, then routes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
