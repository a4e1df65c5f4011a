// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Kind distinguishes the two principal classes. Administrators and
// registered users live in separate relations and have disjoint
// identifier spaces (username vs email).
type Kind string

// Principal kinds.
const (
	KindAdmin      Kind = "admin"
	KindRegistered Kind = "registered"
)

// Role is the fixed role tag assigned at creation. There is no
// role-change operation; a role is immutable for the life of the
// principal.
type Role string

// Roles.
const (
	RoleAdministrator Role = "administrator"
	RoleClient        Role = "client"
	RoleDeveloper     Role = "developer"
)

// ValidRegistrationRole reports whether r is assignable at registration.
func ValidRegistrationRole(r Role) bool {
	return r == RoleClient || r == RoleDeveloper
}

// Principal is a person able to authenticate: an administrator
// (identified by username) or a registered user (identified by email).
// The single type with a Kind tag replaces per-class lookup logic in
// the authenticator.
type Principal struct {
	ID           ulid.ULID
	Kind         Kind
	Role         Role
	Username     string // admins only
	Email        string // registered only
	GivenName    string
	FamilyName   string
	Phone        string
	Title        string // developers only
	PasswordHash string

	FailedAttempts int
	LockedUntil    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAdmin creates a validated administrative principal.
func NewAdmin(username, passwordHash string) (*Principal, error) {
	if strings.TrimSpace(username) == "" {
		return nil, oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Principal{
		ID:           ulid.Make(),
		Kind:         KindAdmin,
		Role:         RoleAdministrator,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewRegistration creates a validated registered principal. Title is
// only meaningful for developers and is discarded for clients.
func NewRegistration(givenName, familyName, email, phone string, role Role, title, passwordHash string) (*Principal, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, oops.Code("AUTH_INVALID_EMAIL").With("email", email).Wrap(err)
	}
	if !ValidRegistrationRole(role) {
		return nil, oops.Code("AUTH_INVALID_ROLE").
			With("role", string(role)).
			Errorf("role must be client or developer")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if role != RoleDeveloper {
		title = ""
	}

	now := time.Now()
	return &Principal{
		ID:           ulid.Make(),
		Kind:         KindRegistered,
		Role:         role,
		Email:        email,
		GivenName:    givenName,
		FamilyName:   familyName,
		Phone:        phone,
		Title:        title,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Identifier returns the login identifier for the principal's kind.
func (p *Principal) Identifier() string {
	if p.Kind == KindAdmin {
		return p.Username
	}
	return p.Email
}

// DisplayName returns the name shown after login: the username for
// admins, "Given Family" for registered users.
func (p *Principal) DisplayName() string {
	if p.Kind == KindAdmin {
		return p.Username
	}
	return strings.TrimSpace(p.GivenName + " " + p.FamilyName)
}

// IsLocked returns true if the principal is currently locked out.
func (p *Principal) IsLocked() bool {
	return IsLockedOut(p.LockedUntil)
}

// RecordFailure increments the failure counter and sets lockout if the
// threshold is reached.
func (p *Principal) RecordFailure() {
	p.FailedAttempts++
	p.LockedUntil = ComputeLockoutTime(p.FailedAttempts)
	p.UpdatedAt = time.Now()
}

// RecordSuccess resets the failure counter and lockout.
func (p *Principal) RecordSuccess() {
	p.FailedAttempts = 0
	p.LockedUntil = nil
	p.UpdatedAt = time.Now()
}

// Credential is the (owner, stored secret) pair the migration sweep
// operates on.
type Credential struct {
	PrincipalID  ulid.ULID
	Kind         Kind
	PasswordHash string
}

// PrincipalRepository manages principal persistence across both
// principal classes.
type PrincipalRepository interface {
	// CreateAdmin stores a new administrative principal.
	// Returns ErrDuplicate if the username is taken.
	CreateAdmin(ctx context.Context, p *Principal) error

	// CreateRegistration stores a new registered principal.
	// Returns ErrDuplicate if the email is already registered.
	CreateRegistration(ctx context.Context, p *Principal) error

	// GetByUsername retrieves an administrative principal (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Principal, error)

	// GetByEmail retrieves a registered principal (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Principal, error)

	// FindByIdentifier resolves an identifier against both principal
	// classes: admin username first, then registered email. Returns
	// ErrNotFound when neither matches.
	FindByIdentifier(ctx context.Context, identifier string) (*Principal, error)

	// UpdatePassword replaces only the stored password hash.
	UpdatePassword(ctx context.Context, kind Kind, id ulid.ULID, passwordHash string) error

	// UpdateLoginState persists failure counter and lockout changes for
	// a registered principal.
	UpdateLoginState(ctx context.Context, p *Principal) error

	// ListCredentials returns every stored credential with its owner,
	// for the migration sweep.
	ListCredentials(ctx context.Context) ([]Credential, error)
}
