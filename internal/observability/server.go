// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the service is ready to accept connections.
type ReadinessChecker func() bool

// Metrics contains custom Prometheus metrics for TrackCraft.
type Metrics struct {
	LoginsTotal          *prometheus.CounterVec
	ResetsRequestedTotal prometheus.Counter
	ResetsRedeemedTotal  *prometheus.CounterVec
	MailDeliveriesTotal  *prometheus.CounterVec
	CredentialsMigrated  prometheus.Counter
	HTTPRequestsTotal    *prometheus.CounterVec
	SessionsEvicted      prometheus.Counter
	PendingEvicted       prometheus.Counter
}

// NewMetrics creates and registers custom TrackCraft metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackcraft_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		ResetsRequestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackcraft_password_resets_requested_total",
				Help: "Total number of password reset requests accepted",
			},
		),
		ResetsRedeemedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackcraft_password_resets_redeemed_total",
				Help: "Total number of reset token redemptions by outcome",
			},
			[]string{"outcome"},
		),
		MailDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackcraft_mail_deliveries_total",
				Help: "Total number of activation mail deliveries by outcome",
			},
			[]string{"outcome"},
		),
		CredentialsMigrated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackcraft_credentials_migrated_total",
				Help: "Total number of stored credentials upgraded to bcrypt",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackcraft_http_requests_total",
				Help: "Total number of HTTP requests by path and status",
			},
			[]string{"path", "status"},
		),
		SessionsEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackcraft_sessions_evicted_total",
				Help: "Total number of expired web sessions removed",
			},
		),
		PendingEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackcraft_pending_changes_evicted_total",
				Help: "Total number of expired pending credential changes removed",
			},
		),
	}

	reg.MustRegister(m.LoginsTotal)
	reg.MustRegister(m.ResetsRequestedTotal)
	reg.MustRegister(m.ResetsRedeemedTotal)
	reg.MustRegister(m.MailDeliveriesTotal)
	reg.MustRegister(m.CredentialsMigrated)
	reg.MustRegister(m.HTTPRequestsTotal)
	reg.MustRegister(m.SessionsEvicted)
	reg.MustRegister(m.PendingEvicted)

	return m
}

// AddSessionsEvicted records expired sessions removed by a sweep.
func (m *Metrics) AddSessionsEvicted(n int64) {
	m.SessionsEvicted.Add(float64(n))
}

// AddPendingEvicted records expired pending credential changes removed
// by a sweep.
func (m *Metrics) AddPendingEvicted(n int64) {
	m.PendingEvicted.Add(float64(n))
}

// AddMailDelivery records one activation mail attempt by outcome.
func (m *Metrics) AddMailDelivery(outcome string) {
	m.MailDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (e.g., "127.0.0.1:9100", ":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	// Create a new registry to avoid polluting the global one
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := NewMetrics(registry)

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}
}

// Metrics returns the custom metrics for recording application events.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving observability endpoints.
// It returns an error channel that will receive any errors from the HTTP server
// after it starts. The channel is closed when the server stops gracefully.
// Callers should monitor this channel to detect server failures.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleLiveness returns 200 if the process is running.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 if the service is ready to accept connections,
// or 503 if not ready.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
