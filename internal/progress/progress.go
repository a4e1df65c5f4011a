// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

// Package progress tracks per-registration project progress records.
package progress

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Record is one progress entry reported by (or about) a registered
// principal.
type Record struct {
	ID             ulid.ULID
	RegistrationID ulid.ULID
	Description    string
	Percent        int // 0..100
	CreatedAt      time.Time
}

// NewRecord creates a validated progress record. Percent is clamped
// to [0, 100].
func NewRecord(registrationID ulid.ULID, description string, percent int) (*Record, error) {
	if registrationID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("PROGRESS_INVALID_REGISTRATION").Errorf("registration ID cannot be zero")
	}
	if strings.TrimSpace(description) == "" {
		return nil, oops.Code("PROGRESS_EMPTY_DESCRIPTION").Errorf("description cannot be empty")
	}

	return &Record{
		ID:             ulid.Make(),
		RegistrationID: registrationID,
		Description:    description,
		Percent:        clamp(percent),
		CreatedAt:      time.Now(),
	}, nil
}

// DeveloperAverage is the average progress of one developer, for the
// administrator overview.
type DeveloperAverage struct {
	RegistrationID ulid.ULID
	Name           string
	AveragePercent float64
}

// Repository manages progress record persistence.
type Repository interface {
	// Create stores a new record.
	Create(ctx context.Context, record *Record) error

	// ListByRegistration returns a registration's records, newest first.
	ListByRegistration(ctx context.Context, registrationID ulid.ULID) ([]*Record, error)

	// AverageByDeveloper returns per-developer average progress.
	AverageByDeveloper(ctx context.Context) ([]DeveloperAverage, error)
}

func clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
