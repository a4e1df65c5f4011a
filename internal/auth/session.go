// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes  = 32             // 32 bytes = 64 hex chars
	SessionTokenExpiry = 24 * time.Hour // 24 hour expiry
)

// SessionContext is the per-request identity established by a
// successful login: who the principal is, what to call them, and what
// role gates their dashboard. It is threaded explicitly through the
// delivery layer; there is no process-wide session state.
type SessionContext struct {
	PrincipalID ulid.ULID
	Kind        Kind
	DisplayName string
	Role        Role
}

// WebSession is the durable backing record of a SessionContext,
// addressed by the SHA-256 hash of its bearer token.
type WebSession struct {
	ID          ulid.ULID
	PrincipalID ulid.ULID
	Kind        Kind
	DisplayName string
	Role        Role
	TokenHash   string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	LastSeenAt  time.Time
}

// NewWebSession creates a validated WebSession for the principal.
func NewWebSession(p *Principal, tokenHash string, expiresAt time.Time) (*WebSession, error) {
	if p == nil {
		return nil, oops.Code("SESSION_INVALID_PRINCIPAL").Errorf("principal cannot be nil")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	now := time.Now()
	return &WebSession{
		ID:          ulid.Make(),
		PrincipalID: p.ID,
		Kind:        p.Kind,
		DisplayName: p.DisplayName(),
		Role:        p.Role,
		TokenHash:   tokenHash,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		LastSeenAt:  now,
	}, nil
}

// Context returns the SessionContext carried by the session.
func (s *WebSession) Context() *SessionContext {
	return &SessionContext{
		PrincipalID: s.PrincipalID,
		Kind:        s.Kind,
		DisplayName: s.DisplayName,
		Role:        s.Role,
	}
}

// IsExpired returns true if the session has expired.
func (s *WebSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsExpiredAt returns true if the session would be expired at the
// given time. Useful for tests with deterministic time values.
func (s *WebSession) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; only the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashSessionToken(token)

	return token, hash, nil
}

// HashSessionToken computes the SHA-256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks the plaintext token against the stored
// hash in constant time.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// SessionRepository manages web session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *WebSession) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*WebSession, error)

	// UpdateLastSeen bumps the last-seen timestamp.
	UpdateLastSeen(ctx context.Context, id ulid.ULID, at time.Time) error

	// DeleteByTokenHash removes a session (logout).
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteExpired removes sessions that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
