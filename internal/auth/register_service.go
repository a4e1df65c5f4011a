// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// RegistrationInput carries the registration form fields. Phone and
// Title are optional; Title applies to developers only.
type RegistrationInput struct {
	GivenName  string
	FamilyName string
	Email      string
	Phone      string
	Role       Role
	Title      string
	Password   string
}

// RegisterService creates principals.
type RegisterService struct {
	principals PrincipalRepository
	hasher     PasswordHasher
	logger     *slog.Logger
}

// NewRegisterService creates a RegisterService. A nil logger falls
// back to slog.Default.
func NewRegisterService(principals PrincipalRepository, hasher PasswordHasher, logger *slog.Logger) (*RegisterService, error) {
	if principals == nil {
		return nil, oops.Errorf("principal repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RegisterService{principals: principals, hasher: hasher, logger: logger}, nil
}

// Register creates a registered principal. The password is hashed
// before anything is persisted; there is no code path that stores a
// raw secret. A duplicate email surfaces as REGISTER_DUPLICATE_EMAIL.
func (s *RegisterService) Register(ctx context.Context, in RegistrationInput) (*Principal, error) {
	if missing := missingFields(in); len(missing) > 0 {
		return nil, oops.Code("REGISTER_MISSING_FIELD").
			With("fields", missing).
			Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !ValidRegistrationRole(in.Role) {
		return nil, oops.Code("REGISTER_INVALID_ROLE").
			With("role", string(in.Role)).
			Errorf("role must be client or developer")
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	principal, err := NewRegistration(in.GivenName, in.FamilyName, in.Email, in.Phone, in.Role, in.Title, passwordHash)
	if err != nil {
		return nil, err
	}

	if err := s.principals.CreateRegistration(ctx, principal); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, oops.Code("REGISTER_DUPLICATE_EMAIL").
				With("email", in.Email).
				Errorf("email is already registered")
		}
		return nil, oops.Code("REGISTER_FAILED").With("operation", "create registration").Wrap(err)
	}

	s.logger.Info("principal registered",
		"principal_id", principal.ID.String(),
		"role", string(principal.Role),
	)

	return principal, nil
}

// EnsureAdmin creates the administrative principal if it does not
// exist yet. Called once at startup so a fresh install can log in.
func (s *RegisterService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.principals.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return oops.Code("ADMIN_BOOTSTRAP_FAILED").With("operation", "get admin").Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("ADMIN_BOOTSTRAP_FAILED").With("operation", "hash password").Wrap(err)
	}

	admin, err := NewAdmin(username, passwordHash)
	if err != nil {
		return err
	}

	if err := s.principals.CreateAdmin(ctx, admin); err != nil {
		// Another instance may have won the race; the admin exists either way.
		if errors.Is(err, ErrDuplicate) {
			return nil
		}
		return oops.Code("ADMIN_BOOTSTRAP_FAILED").With("operation", "create admin").Wrap(err)
	}

	s.logger.Info("default admin created", "username", username)
	return nil
}

// missingFields returns the names of blank mandatory inputs, in form
// order.
func missingFields(in RegistrationInput) []string {
	var missing []string
	if strings.TrimSpace(in.GivenName) == "" {
		missing = append(missing, "given_name")
	}
	if strings.TrimSpace(in.FamilyName) == "" {
		missing = append(missing, "family_name")
	}
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if in.Role == "" {
		missing = append(missing, "role")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	return missing
}
