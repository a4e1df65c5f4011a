// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth

import (
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// bcryptPrefixes are the modular-crypt markers of a bcrypt-encoded hash.
// Stored credentials carrying any other shape are treated as legacy
// plaintext by the migration sweep.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// PasswordHasher provides one-way password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted bcrypt hash of the password. Two calls with
	// the same input yield different encodings (fresh salt each time).
	Hash(password string) (string, error)

	// Verify reports whether password was the input used to produce hash.
	// Returns false on malformed hash input; it never panics and runs in
	// time independent of where a mismatch occurs.
	Verify(password, hash string) bool

	// IsHashed reports whether value is structurally a bcrypt hash.
	// This is a classifier for migration eligibility, not a security check.
	IsHashed(value string) bool
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with the default cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

// Hash produces a salted bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches the bcrypt hash.
// bcrypt re-derives the key from the encoded salt and compares in
// constant time; any parse failure reports a plain mismatch.
func (h *BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IsHashed reports whether value carries a bcrypt prefix marker.
func (h *BcryptHasher) IsHashed(value string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}

// Compile-time interface check.
var _ PasswordHasher = (*BcryptHasher)(nil)
