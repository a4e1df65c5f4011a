// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package progress

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// poolIface is the subset of pgxpool.Pool the repository uses.
// pgxmock satisfies it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool poolIface
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(pool poolIface) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create stores a new progress record.
func (r *PostgresRepository) Create(ctx context.Context, record *Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO progress_records (id, registration_id, description, percent, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, record.ID.String(), record.RegistrationID.String(), record.Description, record.Percent, record.CreatedAt)
	if err != nil {
		return oops.Code("PROGRESS_CREATE_FAILED").
			With("registration_id", record.RegistrationID.String()).
			Wrap(err)
	}
	return nil
}

// ListByRegistration returns a registration's records, newest first.
func (r *PostgresRepository) ListByRegistration(ctx context.Context, registrationID ulid.ULID) ([]*Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, registration_id, description, percent, created_at
		FROM progress_records
		WHERE registration_id = $1
		ORDER BY id DESC
	`, registrationID.String())
	if err != nil {
		return nil, oops.Code("PROGRESS_LIST_FAILED").
			With("registration_id", registrationID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			idStr    string
			regIDStr string
			record   Record
		)
		if err := rows.Scan(&idStr, &regIDStr, &record.Description, &record.Percent, &record.CreatedAt); err != nil {
			return nil, oops.Code("PROGRESS_SCAN_FAILED").Wrap(err)
		}
		if record.ID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("PROGRESS_INVALID_ID").With("id", idStr).Wrap(err)
		}
		if record.RegistrationID, err = ulid.Parse(regIDStr); err != nil {
			return nil, oops.Code("PROGRESS_INVALID_ID").With("registration_id", regIDStr).Wrap(err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PROGRESS_LIST_FAILED").Wrap(err)
	}
	return records, nil
}

// AverageByDeveloper returns the average reported progress per
// developer, zero for developers without records.
func (r *PostgresRepository) AverageByDeveloper(ctx context.Context) ([]DeveloperAverage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT reg.id,
		       TRIM(reg.given_name || ' ' || reg.family_name) AS name,
		       COALESCE(AVG(p.percent), 0) AS average_percent
		FROM registrations reg
		LEFT JOIN progress_records p ON p.registration_id = reg.id
		WHERE reg.role = 'developer'
		GROUP BY reg.id, name
		ORDER BY name
	`)
	if err != nil {
		return nil, oops.Code("PROGRESS_AVERAGE_FAILED").Wrap(err)
	}
	defer rows.Close()

	var averages []DeveloperAverage
	for rows.Next() {
		var (
			idStr string
			avg   DeveloperAverage
		)
		if err := rows.Scan(&idStr, &avg.Name, &avg.AveragePercent); err != nil {
			return nil, oops.Code("PROGRESS_SCAN_FAILED").Wrap(err)
		}
		if avg.RegistrationID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("PROGRESS_INVALID_ID").With("id", idStr).Wrap(err)
		}
		averages = append(averages, avg)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PROGRESS_AVERAGE_FAILED").Wrap(err)
	}
	return averages, nil
}

// Compile-time interface check.
var _ Repository = (*PostgresRepository)(nil)
