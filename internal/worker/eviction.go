// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

// Package worker runs periodic background maintenance.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/trackcraft/trackcraft/internal/auth"
	"github.com/trackcraft/trackcraft/pkg/errutil"
)

// EvictionMetrics receives counts of evicted rows. Implemented by the
// observability metrics; nil-safe via the noop default.
type EvictionMetrics interface {
	AddSessionsEvicted(n int64)
	AddPendingEvicted(n int64)
}

type noopMetrics struct{}

func (noopMetrics) AddSessionsEvicted(int64) {}
func (noopMetrics) AddPendingEvicted(int64)  {}

// EvictionWorker periodically removes expired web sessions and
// expired pending credential changes.
type EvictionWorker struct {
	sessions    auth.SessionRepository
	pending     auth.PendingChangeRepository
	resetWindow time.Duration
	interval    time.Duration
	metrics     EvictionMetrics
	logger      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEvictionWorker creates an EvictionWorker. A nil metrics sink and
// a nil logger fall back to no-op and slog.Default respectively.
func NewEvictionWorker(
	sessions auth.SessionRepository,
	pending auth.PendingChangeRepository,
	resetWindow, interval time.Duration,
	metrics EvictionMetrics,
	logger *slog.Logger,
) (*EvictionWorker, error) {
	if sessions == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if pending == nil {
		return nil, oops.Errorf("pending change repository is required")
	}
	if resetWindow <= 0 {
		return nil, oops.Errorf("reset window must be positive")
	}
	if interval <= 0 {
		return nil, oops.Errorf("eviction interval must be positive")
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EvictionWorker{
		sessions:    sessions,
		pending:     pending,
		resetWindow: resetWindow,
		interval:    interval,
		metrics:     metrics,
		logger:      logger,
	}, nil
}

// Start launches the eviction loop in a goroutine. The loop runs one
// sweep immediately and then on every interval tick until Stop is
// called or ctx is cancelled.
func (w *EvictionWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight sweep to finish.
func (w *EvictionWorker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *EvictionWorker) sweep(ctx context.Context) {
	now := time.Now()

	evicted, err := w.sessions.DeleteExpired(ctx, now)
	if err != nil {
		errutil.LogError(w.logger, "session eviction sweep failed", err)
	} else if evicted > 0 {
		w.metrics.AddSessionsEvicted(evicted)
		w.logger.Info("evicted expired sessions", "count", evicted)
	}

	evicted, err = w.pending.DeleteExpired(ctx, w.resetWindow)
	if err != nil {
		errutil.LogError(w.logger, "pending change eviction sweep failed", err)
	} else if evicted > 0 {
		w.metrics.AddPendingEvicted(evicted)
		w.logger.Info("evicted expired pending credential changes", "count", evicted)
	}
}
