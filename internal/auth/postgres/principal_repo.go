// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

// Package postgres provides PostgreSQL implementations of the auth
// repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/trackcraft/trackcraft/internal/auth"
)

// poolIface is the subset of pgxpool.Pool the repositories use.
// pgxmock satisfies it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// isUniqueViolation reports whether err is a unique-constraint reject.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// PrincipalRepository implements auth.PrincipalRepository over the
// admins and registrations relations.
type PrincipalRepository struct {
	pool poolIface
}

// NewPrincipalRepository creates a new PrincipalRepository.
func NewPrincipalRepository(pool poolIface) *PrincipalRepository {
	return &PrincipalRepository{pool: pool}
}

// CreateAdmin stores a new administrative principal.
func (r *PrincipalRepository) CreateAdmin(ctx context.Context, p *auth.Principal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admins (id, username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID.String(), p.Username, p.PasswordHash, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ADMIN_DUPLICATE_USERNAME").
				With("username", p.Username).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("ADMIN_CREATE_FAILED").
			With("username", p.Username).
			Wrap(err)
	}
	return nil
}

// CreateRegistration stores a new registered principal.
func (r *PrincipalRepository) CreateRegistration(ctx context.Context, p *auth.Principal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO registrations (
			id, given_name, family_name, email, phone, role, title,
			password_hash, failed_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		p.ID.String(),
		p.GivenName,
		p.FamilyName,
		p.Email,
		p.Phone,
		string(p.Role),
		p.Title,
		p.PasswordHash,
		p.FailedAttempts,
		p.LockedUntil,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("REGISTRATION_DUPLICATE_EMAIL").
				With("email", p.Email).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("REGISTRATION_CREATE_FAILED").
			With("email", p.Email).
			Wrap(err)
	}
	return nil
}

// GetByUsername retrieves an administrative principal (case-insensitive).
func (r *PrincipalRepository) GetByUsername(ctx context.Context, username string) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at, updated_at
		FROM admins
		WHERE LOWER(username) = LOWER($1)
	`, username)

	p, err := scanAdmin(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ADMIN_GET_FAILED").
			With("username", username).
			Wrap(err)
	}
	return p, nil
}

// GetByEmail retrieves a registered principal (case-insensitive).
func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, given_name, family_name, email, phone, role, title,
		       password_hash, failed_attempts, locked_until, created_at, updated_at
		FROM registrations
		WHERE LOWER(email) = LOWER($1)
	`, email)

	p, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REGISTRATION_GET_FAILED").
			With("email", email).
			Wrap(err)
	}
	return p, nil
}

// FindByIdentifier resolves an identifier against both principal
// classes: admin username first, then registered email.
func (r *PrincipalRepository) FindByIdentifier(ctx context.Context, identifier string) (*auth.Principal, error) {
	p, err := r.GetByUsername(ctx, identifier)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return nil, err
	}
	return r.GetByEmail(ctx, identifier)
}

// passwordUpdates maps a principal kind to its UPDATE statement.
var passwordUpdates = map[auth.Kind]string{
	auth.KindAdmin:      `UPDATE admins SET password_hash = $2, updated_at = $3 WHERE id = $1`,
	auth.KindRegistered: `UPDATE registrations SET password_hash = $2, updated_at = $3 WHERE id = $1`,
}

// UpdatePassword replaces only the stored password hash.
func (r *PrincipalRepository) UpdatePassword(ctx context.Context, kind auth.Kind, id ulid.ULID, passwordHash string) error {
	query, ok := passwordUpdates[kind]
	if !ok {
		return oops.Code("PRINCIPAL_INVALID_KIND").
			With("kind", string(kind)).
			Errorf("unknown principal kind")
	}

	result, err := r.pool.Exec(ctx, query, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("PASSWORD_UPDATE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateLoginState persists failure counter and lockout changes.
// Administrative principals carry no lockout state; they are a no-op.
func (r *PrincipalRepository) UpdateLoginState(ctx context.Context, p *auth.Principal) error {
	if p.Kind != auth.KindRegistered {
		return nil
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE registrations SET failed_attempts = $2, locked_until = $3, updated_at = $4
		WHERE id = $1
	`, p.ID.String(), p.FailedAttempts, p.LockedUntil, p.UpdatedAt)
	if err != nil {
		return oops.Code("LOGIN_STATE_UPDATE_FAILED").
			With("id", p.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("id", p.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ListCredentials returns every stored credential across both
// principal classes.
func (r *PrincipalRepository) ListCredentials(ctx context.Context) ([]auth.Credential, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, 'admin' AS kind, password_hash FROM admins
		UNION ALL
		SELECT id, 'registered' AS kind, password_hash FROM registrations
	`)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var credentials []auth.Credential
	for rows.Next() {
		var (
			idStr string
			kind  string
			hash  string
		)
		if err := rows.Scan(&idStr, &kind, &hash); err != nil {
			return nil, oops.Code("CREDENTIAL_SCAN_FAILED").Wrap(err)
		}
		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("CREDENTIAL_INVALID_ID").With("id", idStr).Wrap(err)
		}
		credentials = append(credentials, auth.Credential{
			PrincipalID:  id,
			Kind:         auth.Kind(kind),
			PasswordHash: hash,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CREDENTIAL_LIST_FAILED").Wrap(err)
	}
	return credentials, nil
}

// scanAdmin scans one admins row. Callers handle pgx.ErrNoRows.
func scanAdmin(row pgx.Row) (*auth.Principal, error) {
	var (
		idStr        string
		username     string
		passwordHash string
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := row.Scan(&idStr, &username, &passwordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ADMIN_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ADMIN_INVALID_ID").With("id", idStr).Wrap(err)
	}

	return &auth.Principal{
		ID:           id,
		Kind:         auth.KindAdmin,
		Role:         auth.RoleAdministrator,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// scanRegistration scans one registrations row. Callers handle
// pgx.ErrNoRows.
func scanRegistration(row pgx.Row) (*auth.Principal, error) {
	var (
		idStr          string
		givenName      string
		familyName     string
		email          string
		phone          string
		role           string
		title          string
		passwordHash   string
		failedAttempts int
		lockedUntil    *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(
		&idStr,
		&givenName,
		&familyName,
		&email,
		&phone,
		&role,
		&title,
		&passwordHash,
		&failedAttempts,
		&lockedUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("REGISTRATION_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("REGISTRATION_INVALID_ID").With("id", idStr).Wrap(err)
	}

	return &auth.Principal{
		ID:             id,
		Kind:           auth.KindRegistered,
		Role:           auth.Role(role),
		Email:          email,
		GivenName:      givenName,
		FamilyName:     familyName,
		Phone:          phone,
		Title:          title,
		PasswordHash:   passwordHash,
		FailedAttempts: failedAttempts,
		LockedUntil:    lockedUntil,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.PrincipalRepository = (*PrincipalRepository)(nil)
