// Package server implements the HTTP boundary: routing, authentication,
// request validation, and the single place where the error taxonomy is
// mapped to status codes.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/internal/ratelimiter"
	"github.com/marmos91/dittodrive/pkg/auth"
	"github.com/marmos91/dittodrive/pkg/config"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/user"
)

// Server is the HTTP front of the drive service.
//
// It owns no state beyond its dependencies: per-request identity is carried
// in the request context, and the engines underneath are stateless, so the
// server is safe under net/http's per-request goroutines without locking.
type Server struct {
	cfg     config.ServerConfig
	files   *drive.FileEngine
	dirs    *drive.DirectoryEngine
	users   user.Store
	tokens  *auth.TokenIssuer
	limiter *ratelimiter.RateLimiter
	handler http.Handler
}

// New wires the routes and middleware. The rate limiter is optional; nil
// disables limiting regardless of configuration.
func New(cfg config.ServerConfig, files *drive.FileEngine, dirs *drive.DirectoryEngine, users user.Store, tokens *auth.TokenIssuer) *Server {
	s := &Server{
		cfg:    cfg,
		files:  files,
		dirs:   dirs,
		users:  users,
		tokens: tokens,
	}

	if cfg.RateLimit.Enabled {
		s.limiter = ratelimiter.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/sign-up", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/sign-in", s.handleSignIn)

	mux.Handle("GET /api/user/me", s.authenticated(s.handleMe))

	mux.Handle("GET /api/resource", s.authenticated(s.handleResourceInfo))
	mux.Handle("POST /api/resource", s.authenticated(s.handleUpload))
	mux.Handle("DELETE /api/resource", s.authenticated(s.handleDelete))
	mux.Handle("GET /api/resource/download", s.authenticated(s.handleDownload))
	mux.Handle("GET /api/resource/move", s.authenticated(s.handleMove))
	mux.Handle("GET /api/resource/rename", s.authenticated(s.handleRename))
	mux.Handle("GET /api/resource/search", s.authenticated(s.handleSearch))

	mux.Handle("GET /api/directory", s.authenticated(s.handleDirectoryContent))
	mux.Handle("POST /api/directory", s.authenticated(s.handleDirectoryCreate))

	s.handler = s.rateLimited(s.logged(mux))

	return s
}

// Handler exposes the complete middleware chain, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve runs the HTTP server until the context is cancelled, then shuts
// down gracefully within the configured timeout. In-flight requests get to
// finish; idle connections are closed immediately.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", s.cfg.Address)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server (timeout: %v)", s.cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown incomplete: %v", err)
		return httpServer.Close()
	}

	return nil
}
