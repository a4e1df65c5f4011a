// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/trackcraft/trackcraft/internal/auth"
)

// PendingChangeRepository implements auth.PendingChangeRepository
// using PostgreSQL.
type PendingChangeRepository struct {
	pool poolIface
}

// NewPendingChangeRepository creates a new PendingChangeRepository.
func NewPendingChangeRepository(pool poolIface) *PendingChangeRepository {
	return &PendingChangeRepository{pool: pool}
}

// Create stores a new pending credential change.
func (r *PendingChangeRepository) Create(ctx context.Context, change *auth.PendingCredentialChange) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pending_credential_changes (id, email, secret_hash, token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, change.ID.String(), change.Email, change.SecretHash, change.TokenHash, change.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("PENDING_DUPLICATE_TOKEN").Wrap(auth.ErrDuplicate)
		}
		return oops.Code("PENDING_CREATE_FAILED").
			With("email", change.Email).
			Wrap(err)
	}
	return nil
}

// Redeem atomically consumes the pending change addressed by
// tokenHash. Within one transaction it locks the row, applies the
// stored secret hash to the registered principal, and deletes the
// row. Rows outside the window never match, which is also what
// enforces single use after a crash mid-redeem: either both writes
// committed or neither did.
func (r *PendingChangeRepository) Redeem(ctx context.Context, tokenHash string, window time.Duration) (*auth.PendingCredentialChange, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, oops.Code("PENDING_REDEEM_FAILED").With("operation", "begin tx").Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // No-op after commit

	row := tx.QueryRow(ctx, `
		SELECT id, email, secret_hash, token_hash, created_at
		FROM pending_credential_changes
		WHERE token_hash = $1 AND created_at >= $2
		FOR UPDATE
	`, tokenHash, time.Now().Add(-window))

	change, err := scanPendingChange(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PENDING_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PENDING_REDEEM_FAILED").With("operation", "select pending change").Wrap(err)
	}

	result, err := tx.Exec(ctx, `
		UPDATE registrations SET password_hash = $2, updated_at = $3
		WHERE LOWER(email) = LOWER($1)
	`, change.Email, change.SecretHash, time.Now())
	if err != nil {
		return nil, oops.Code("PENDING_REDEEM_FAILED").With("operation", "apply credential").Wrap(err)
	}
	if result.RowsAffected() == 0 {
		// The registration disappeared after the reset was requested;
		// the token no longer points at anything redeemable.
		return nil, oops.Code("PENDING_NOT_FOUND").
			With("email", change.Email).
			Wrap(auth.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM pending_credential_changes WHERE id = $1
	`, change.ID.String()); err != nil {
		return nil, oops.Code("PENDING_REDEEM_FAILED").With("operation", "delete pending change").Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("PENDING_REDEEM_FAILED").With("operation", "commit").Wrap(err)
	}

	return change, nil
}

// DeleteExpired removes pending changes older than the window.
func (r *PendingChangeRepository) DeleteExpired(ctx context.Context, window time.Duration) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM pending_credential_changes WHERE created_at < $1
	`, time.Now().Add(-window))
	if err != nil {
		return 0, oops.Code("PENDING_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanPendingChange scans one row. Callers handle pgx.ErrNoRows.
func scanPendingChange(row pgx.Row) (*auth.PendingCredentialChange, error) {
	var (
		idStr      string
		email      string
		secretHash string
		tokenHash  string
		createdAt  time.Time
	)

	if err := row.Scan(&idStr, &email, &secretHash, &tokenHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("PENDING_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PENDING_INVALID_ID").With("id", idStr).Wrap(err)
	}

	return &auth.PendingCredentialChange{
		ID:         id,
		Email:      email,
		SecretHash: secretHash,
		TokenHash:  tokenHash,
		CreatedAt:  createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.PendingChangeRepository = (*PendingChangeRepository)(nil)
