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

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new web session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.WebSession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO web_sessions (
			id, principal_id, principal_kind, display_name, role,
			token_hash, expires_at, created_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		session.ID.String(),
		session.PrincipalID.String(),
		string(session.Kind),
		session.DisplayName,
		string(session.Role),
		session.TokenHash,
		session.ExpiresAt,
		session.CreatedAt,
		session.LastSeenAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("principal_id", session.PrincipalID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.WebSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, principal_id, principal_kind, display_name, role,
		       token_hash, expires_at, created_at, last_seen_at
		FROM web_sessions
		WHERE token_hash = $1
	`, tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").Wrap(err)
	}
	return session, nil
}

// UpdateLastSeen bumps the last-seen timestamp.
func (r *SessionRepository) UpdateLastSeen(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE web_sessions SET last_seen_at = $2 WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return oops.Code("SESSION_UPDATE_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByTokenHash removes a session.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM web_sessions WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes sessions that expired before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM web_sessions WHERE expires_at < $1
	`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans one row. Callers handle pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.WebSession, error) {
	var (
		idStr          string
		principalIDStr string
		kind           string
		displayName    string
		role           string
		tokenHash      string
		expiresAt      time.Time
		createdAt      time.Time
		lastSeenAt     time.Time
	)

	err := row.Scan(
		&idStr,
		&principalIDStr,
		&kind,
		&displayName,
		&role,
		&tokenHash,
		&expiresAt,
		&createdAt,
		&lastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	principalID, err := ulid.Parse(principalIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_PRINCIPAL_ID").With("principal_id", principalIDStr).Wrap(err)
	}

	return &auth.WebSession{
		ID:          id,
		PrincipalID: principalID,
		Kind:        auth.Kind(kind),
		DisplayName: displayName,
		Role:        auth.Role(role),
		TokenHash:   tokenHash,
		ExpiresAt:   expiresAt,
		CreatedAt:   createdAt,
		LastSeenAt:  lastSeenAt,
	}, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
