// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package progress

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service coordinates progress record operations.
type Service struct {
	records Repository
	logger  *slog.Logger
}

// NewService creates a Service. A nil logger falls back to
// slog.Default.
func NewService(records Repository, logger *slog.Logger) (*Service, error) {
	if records == nil {
		return nil, oops.Errorf("progress repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger}, nil
}

// Add records a progress entry for the registration. Percent is
// clamped to [0, 100].
func (s *Service) Add(ctx context.Context, registrationID ulid.ULID, description string, percent int) (*Record, error) {
	record, err := NewRecord(registrationID, description, percent)
	if err != nil {
		return nil, err
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// List returns the registration's records, newest first.
func (s *Service) List(ctx context.Context, registrationID ulid.ULID) ([]*Record, error) {
	return s.records.ListByRegistration(ctx, registrationID)
}

// DeveloperAverages returns per-developer average progress for the
// administrator overview.
func (s *Service) DeveloperAverages(ctx context.Context) ([]DeveloperAverage, error) {
	return s.records.AverageByDeveloper(ctx)
}
