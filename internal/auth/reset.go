// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/mail"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	// ResetTokenBytes gives 256 bits of entropy per token.
	ResetTokenBytes = 32

	// ResetWindow is how long a pending change stays redeemable.
	ResetWindow = 15 * time.Minute
)

// PendingCredentialChange is an ephemeral record of a not-yet-applied
// password change: the target email, the already-hashed new secret,
// and the SHA-256 hash of the single-use token that authorizes it.
// The plaintext new secret is never stored.
type PendingCredentialChange struct {
	ID         ulid.ULID
	Email      string
	SecretHash string
	TokenHash  string
	CreatedAt  time.Time
}

// NewPendingCredentialChange creates a validated pending change.
func NewPendingCredentialChange(email, secretHash, tokenHash string) (*PendingCredentialChange, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, oops.Code("RESET_INVALID_EMAIL").With("email", email).Wrap(err)
	}
	if secretHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("secret hash cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}

	return &PendingCredentialChange{
		ID:         ulid.Make(),
		Email:      email,
		SecretHash: secretHash,
		TokenHash:  tokenHash,
		CreatedAt:  time.Now(),
	}, nil
}

// ExpiresAt returns the end of the redemption window.
func (c *PendingCredentialChange) ExpiresAt() time.Time {
	return c.CreatedAt.Add(ResetWindow)
}

// IsExpiredAt returns true if the change would be expired at t.
func (c *PendingCredentialChange) IsExpiredAt(t time.Time) bool {
	return t.After(c.ExpiresAt())
}

// GenerateResetToken creates a URL-safe random token and its hash.
// The plaintext token travels in the activation link; only the hash
// is stored.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").
			With("requested_bytes", ResetTokenBytes).
			Wrap(err)
	}

	token = base64.RawURLEncoding.EncodeToString(tokenBytes)
	hash = HashResetToken(token)

	return token, hash, nil
}

// HashResetToken computes the SHA-256 hash of a reset token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyResetToken checks the plaintext token against the stored hash
// in constant time.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// PendingChangeRepository manages pending credential change persistence.
type PendingChangeRepository interface {
	// Create stores a new pending change.
	Create(ctx context.Context, change *PendingCredentialChange) error

	// Redeem atomically consumes the pending change addressed by
	// tokenHash: within one transaction it applies the stored secret
	// hash to the registered principal and deletes the row. Rows older
	// than the window are not matched. Returns ErrNotFound when no
	// redeemable row exists.
	Redeem(ctx context.Context, tokenHash string, window time.Duration) (*PendingCredentialChange, error)

	// DeleteExpired removes pending changes older than the window.
	DeleteExpired(ctx context.Context, window time.Duration) (int64, error)
}
