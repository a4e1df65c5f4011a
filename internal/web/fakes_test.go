// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package web_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/trackcraft/trackcraft/internal/auth"
	"github.com/trackcraft/trackcraft/internal/progress"
)

// memHasher is a deterministic PasswordHasher for handler tests. Real
// bcrypt behavior is covered by the auth package tests.
type memHasher struct{}

func (memHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "hashed:" + password, nil
}

func (memHasher) Verify(password, hash string) bool {
	return hash == "hashed:"+password
}

func (memHasher) IsHashed(value string) bool {
	return strings.HasPrefix(value, "hashed:")
}

// memPrincipalRepo is an in-memory PrincipalRepository.
type memPrincipalRepo struct {
	mu     sync.Mutex
	admins map[string]*auth.Principal
	regs   map[string]*auth.Principal
}

func newMemPrincipalRepo() *memPrincipalRepo {
	return &memPrincipalRepo{
		admins: make(map[string]*auth.Principal),
		regs:   make(map[string]*auth.Principal),
	}
}

func (r *memPrincipalRepo) CreateAdmin(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(p.Username)
	if _, ok := r.admins[key]; ok {
		return auth.ErrDuplicate
	}
	r.admins[key] = p
	return nil
}

func (r *memPrincipalRepo) CreateRegistration(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(p.Email)
	if _, ok := r.regs[key]; ok {
		return auth.ErrDuplicate
	}
	r.regs[key] = p
	return nil
}

func (r *memPrincipalRepo) GetByUsername(_ context.Context, username string) (*auth.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.admins[strings.ToLower(username)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return p, nil
}

func (r *memPrincipalRepo) GetByEmail(_ context.Context, email string) (*auth.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.regs[strings.ToLower(email)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return p, nil
}

func (r *memPrincipalRepo) FindByIdentifier(ctx context.Context, identifier string) (*auth.Principal, error) {
	if p, err := r.GetByUsername(ctx, identifier); err == nil {
		return p, nil
	}
	return r.GetByEmail(ctx, identifier)
}

func (r *memPrincipalRepo) UpdatePassword(_ context.Context, kind auth.Kind, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool := r.regs
	if kind == auth.KindAdmin {
		pool = r.admins
	}
	for _, p := range pool {
		if p.ID == id {
			p.PasswordHash = passwordHash
			return nil
		}
	}
	return auth.ErrNotFound
}

func (r *memPrincipalRepo) UpdateLoginState(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.regs[strings.ToLower(p.Email)]
	if !ok {
		return auth.ErrNotFound
	}
	stored.FailedAttempts = p.FailedAttempts
	stored.LockedUntil = p.LockedUntil
	return nil
}

func (r *memPrincipalRepo) ListCredentials(_ context.Context) ([]auth.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var creds []auth.Credential
	for _, p := range r.admins {
		creds = append(creds, auth.Credential{PrincipalID: p.ID, Kind: p.Kind, PasswordHash: p.PasswordHash})
	}
	for _, p := range r.regs {
		creds = append(creds, auth.Credential{PrincipalID: p.ID, Kind: p.Kind, PasswordHash: p.PasswordHash})
	}
	return creds, nil
}

// memSessionRepo is an in-memory SessionRepository.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*auth.WebSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*auth.WebSession)}
}

func (r *memSessionRepo) Create(_ context.Context, session *auth.WebSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.TokenHash] = session
	return nil
}

func (r *memSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*auth.WebSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return session, nil
}

func (r *memSessionRepo) UpdateLastSeen(_ context.Context, id ulid.ULID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.ID == id {
			session.LastSeenAt = at
			return nil
		}
	}
	return auth.ErrNotFound
}

func (r *memSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[tokenHash]; !ok {
		return auth.ErrNotFound
	}
	delete(r.sessions, tokenHash)
	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for hash, session := range r.sessions {
		if session.IsExpiredAt(now) {
			delete(r.sessions, hash)
			removed++
		}
	}
	return removed, nil
}

// memPendingRepo is an in-memory PendingChangeRepository that applies
// redeemed changes to the linked principal repo.
type memPendingRepo struct {
	mu         sync.Mutex
	changes    map[string]*auth.PendingCredentialChange
	principals *memPrincipalRepo
}

func newMemPendingRepo(principals *memPrincipalRepo) *memPendingRepo {
	return &memPendingRepo{
		changes:    make(map[string]*auth.PendingCredentialChange),
		principals: principals,
	}
}

func (r *memPendingRepo) Create(_ context.Context, change *auth.PendingCredentialChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes[change.TokenHash] = change
	return nil
}

func (r *memPendingRepo) Redeem(ctx context.Context, tokenHash string, window time.Duration) (*auth.PendingCredentialChange, error) {
	r.mu.Lock()
	change, ok := r.changes[tokenHash]
	if !ok || time.Since(change.CreatedAt) > window {
		r.mu.Unlock()
		return nil, auth.ErrNotFound
	}
	delete(r.changes, tokenHash)
	r.mu.Unlock()

	principal, err := r.principals.GetByEmail(ctx, change.Email)
	if err != nil {
		return nil, err
	}
	if err := r.principals.UpdatePassword(ctx, auth.KindRegistered, principal.ID, change.SecretHash); err != nil {
		return nil, err
	}
	return change, nil
}

func (r *memPendingRepo) DeleteExpired(_ context.Context, window time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for hash, change := range r.changes {
		if time.Since(change.CreatedAt) > window {
			delete(r.changes, hash)
			removed++
		}
	}
	return removed, nil
}

// memMailer records activation mails.
type memMailer struct {
	mu   sync.Mutex
	sent []string // activation URLs in delivery order
}

func (m *memMailer) SendActivation(_ context.Context, _, activationURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, activationURL)
	return nil
}

func (m *memMailer) lastURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}

// memProgressRepo is an in-memory progress.Repository.
type memProgressRepo struct {
	mu       sync.Mutex
	records  []*progress.Record
	averages []progress.DeveloperAverage
}

func (r *memProgressRepo) Create(_ context.Context, record *progress.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *memProgressRepo) ListByRegistration(_ context.Context, registrationID ulid.ULID) ([]*progress.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*progress.Record
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].RegistrationID == registrationID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

func (r *memProgressRepo) AverageByDeveloper(_ context.Context) ([]progress.DeveloperAverage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.averages, nil
}

// Compile-time interface checks.
var (
	_ auth.PasswordHasher          = memHasher{}
	_ auth.PrincipalRepository     = (*memPrincipalRepo)(nil)
	_ auth.SessionRepository       = (*memSessionRepo)(nil)
	_ auth.PendingChangeRepository = (*memPendingRepo)(nil)
	_ auth.ActivationMailer        = (*memMailer)(nil)
	_ progress.Repository          = (*memProgressRepo)(nil)
)
