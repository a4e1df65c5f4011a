// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

// Package web serves the application HTTP API: login, registration,
// credential changes, and progress tracking.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/trackcraft/trackcraft/internal/auth"
	"github.com/trackcraft/trackcraft/internal/observability"
	"github.com/trackcraft/trackcraft/internal/progress"
)

// SessionCookieName carries the opaque session token.
const SessionCookieName = "trackcraft_session"

// Server is the application HTTP server.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool

	authSvc     *auth.AuthService
	registerSvc *auth.RegisterService
	resetSvc    *auth.ResetService
	progressSvc *progress.Service
	metrics     *observability.Metrics
	logger      *slog.Logger

	secureCookies bool
}

// Options configures a Server beyond its required dependencies.
type Options struct {
	// SecureCookies marks session cookies Secure. Enable when serving
	// behind TLS.
	SecureCookies bool
	// Metrics receives request and outcome counters. Optional.
	Metrics *observability.Metrics
	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// NewServer creates the application server.
func NewServer(
	addr string,
	authSvc *auth.AuthService,
	registerSvc *auth.RegisterService,
	resetSvc *auth.ResetService,
	progressSvc *progress.Service,
	opts Options,
) (*Server, error) {
	if authSvc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if registerSvc == nil {
		return nil, oops.Errorf("register service is required")
	}
	if resetSvc == nil {
		return nil, oops.Errorf("reset service is required")
	}
	if progressSvc == nil {
		return nil, oops.Errorf("progress service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:          addr,
		authSvc:       authSvc,
		registerSvc:   registerSvc,
		resetSvc:      resetSvc,
		progressSvc:   progressSvc,
		metrics:       opts.Metrics,
		logger:        logger,
		secureCookies: opts.SecureCookies,
	}, nil
}

// Handler returns the routed handler with middleware applied. Exposed
// for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("POST /cambiar_contrasena", s.handleChangePassword)
	mux.HandleFunc("GET /activar_contrasena", s.handleActivatePassword)
	mux.HandleFunc("POST /registro", s.handleRegister)

	mux.Handle("POST /progreso", s.requireSession(http.HandlerFunc(s.handleAddProgress)))
	mux.Handle("GET /progreso", s.requireSession(http.HandlerFunc(s.handleListProgress)))

	return s.countRequests(mux)
}

// Start begins serving. It returns an error channel that receives any
// serve error; the channel is closed on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}

	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) sessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
