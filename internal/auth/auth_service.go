// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// dummyPasswordHash is verified against when no principal matches the
// identifier, so response time does not reveal account existence.
// This is NOT a real credential; it never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing-attack prevention, not a credential.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthService resolves (identifier, secret) pairs against both
// principal classes and establishes web sessions.
type AuthService struct {
	principals PrincipalRepository
	sessions   SessionRepository
	hasher     PasswordHasher
	logger     *slog.Logger
}

// NewAuthService creates an AuthService. A nil logger falls back to
// slog.Default.
func NewAuthService(principals PrincipalRepository, sessions SessionRepository, hasher PasswordHasher, logger *slog.Logger) (*AuthService, error) {
	if principals == nil {
		return nil, oops.Errorf("principal repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		principals: principals,
		sessions:   sessions,
		hasher:     hasher,
		logger:     logger,
	}, nil
}

// Login authenticates an identifier/secret pair. The identifier is
// tried as an admin username first, then as a registered email; the
// two failure causes (unknown identifier, wrong secret) are reported
// identically to avoid leaking account existence.
//
// A verified credential still stored as plaintext is upgraded here:
// the stored value is hashed and persisted before verification, so a
// login racing the migration sweep succeeds either way and no code
// path compares raw secrets.
//
// Returns the established SessionContext and the plaintext session
// token for the cookie.
func (s *AuthService) Login(ctx context.Context, identifier, secret string) (*SessionContext, string, error) {
	principal, lookupErr := s.principals.FindByIdentifier(ctx, identifier)

	targetHash := dummyPasswordHash
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "find principal").
				Wrap(lookupErr)
		}
		principal = nil
	} else {
		targetHash = principal.PasswordHash
		if !s.hasher.IsHashed(targetHash) {
			targetHash = s.upgradePlaintext(ctx, principal)
		}
	}

	// Verification runs even for unknown identifiers (dummy hash) to
	// keep response time uniform.
	valid := s.hasher.Verify(secret, targetHash)

	// A locked account answers the same whether or not the guess was
	// right; reporting lockout only for the correct password would turn
	// it into a password oracle.
	if principal != nil && principal.IsLocked() {
		return nil, "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", principal.LockedUntil).
			Errorf("account is temporarily locked")
	}

	if principal == nil || !valid {
		if principal != nil && principal.Kind == KindRegistered {
			principal.RecordFailure()
			_ = s.principals.UpdateLoginState(ctx, principal) //nolint:errcheck // Best effort
		}
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid identifier or password")
	}

	if principal.Kind == KindRegistered && principal.FailedAttempts > 0 {
		principal.RecordSuccess()
		_ = s.principals.UpdateLoginState(ctx, principal) //nolint:errcheck // Best effort
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewWebSession(principal, tokenHash, time.Now().Add(SessionTokenExpiry))
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create web session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").Wrap(err)
	}

	s.logger.Info("principal logged in",
		"principal_id", principal.ID.String(),
		"kind", string(principal.Kind),
		"role", string(principal.Role),
	)

	return session.Context(), token, nil
}

// upgradePlaintext hashes a legacy plaintext credential in place and
// persists it, returning the new hash. On hashing or persistence
// failure the stored value is returned unchanged; the sweep will retry.
func (s *AuthService) upgradePlaintext(ctx context.Context, p *Principal) string {
	upgraded, err := s.hasher.Hash(p.PasswordHash)
	if err != nil {
		s.logger.Warn("credential upgrade on login failed",
			"principal_id", p.ID.String(),
			"error", err.Error(),
		)
		return p.PasswordHash
	}
	if err := s.principals.UpdatePassword(ctx, p.Kind, p.ID, upgraded); err != nil {
		s.logger.Warn("credential upgrade on login failed",
			"principal_id", p.ID.String(),
			"error", err.Error(),
		)
		return p.PasswordHash
	}
	p.PasswordHash = upgraded
	return upgraded
}

// ValidateSession resolves a session token into a SessionContext and
// bumps the last-seen timestamp.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*SessionContext, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").Wrap(err)
	}

	if session.IsExpired() {
		return nil, oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	_ = s.sessions.UpdateLastSeen(ctx, session.ID, time.Now()) //nolint:errcheck // Best effort

	return session.Context(), nil
}

// Logout destroys the session behind the token. Unknown tokens are a
// no-op: the session is gone either way.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_LOGOUT_FAILED").Wrap(err)
	}
	return nil
}
