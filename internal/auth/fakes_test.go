// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/trackcraft/trackcraft/internal/auth"
)

// fastHasher is a deterministic PasswordHasher for service tests.
// Real bcrypt behavior is covered in hasher_test.go.
type fastHasher struct {
	hashErr error
}

func (h *fastHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "hashed:" + password, nil
}

func (h *fastHasher) Verify(password, hash string) bool {
	return hash == "hashed:"+password
}

func (h *fastHasher) IsHashed(value string) bool {
	return strings.HasPrefix(value, "hashed:")
}

// fakePrincipalRepo is an in-memory PrincipalRepository.
type fakePrincipalRepo struct {
	mu sync.Mutex

	admins map[string]*auth.Principal // keyed by lowercase username
	regs   map[string]*auth.Principal // keyed by lowercase email

	findErr           error
	updatePasswordErr error

	updateLoginStateCalls int
	updatePasswordCalls   int
}

func newFakePrincipalRepo() *fakePrincipalRepo {
	return &fakePrincipalRepo{
		admins: make(map[string]*auth.Principal),
		regs:   make(map[string]*auth.Principal),
	}
}

func (r *fakePrincipalRepo) CreateAdmin(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(p.Username)
	if _, ok := r.admins[key]; ok {
		return auth.ErrDuplicate
	}
	r.admins[key] = p
	return nil
}

func (r *fakePrincipalRepo) CreateRegistration(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(p.Email)
	if _, ok := r.regs[key]; ok {
		return auth.ErrDuplicate
	}
	r.regs[key] = p
	return nil
}

func (r *fakePrincipalRepo) GetByUsername(_ context.Context, username string) (*auth.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.admins[strings.ToLower(username)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return p, nil
}

func (r *fakePrincipalRepo) GetByEmail(_ context.Context, email string) (*auth.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.regs[strings.ToLower(email)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return p, nil
}

func (r *fakePrincipalRepo) FindByIdentifier(ctx context.Context, identifier string) (*auth.Principal, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if p, err := r.GetByUsername(ctx, identifier); err == nil {
		return p, nil
	}
	return r.GetByEmail(ctx, identifier)
}

func (r *fakePrincipalRepo) UpdatePassword(_ context.Context, kind auth.Kind, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updatePasswordCalls++
	if r.updatePasswordErr != nil {
		return r.updatePasswordErr
	}
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

func (r *fakePrincipalRepo) UpdateLoginState(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateLoginStateCalls++
	stored, ok := r.regs[strings.ToLower(p.Email)]
	if !ok {
		return auth.ErrNotFound
	}
	stored.FailedAttempts = p.FailedAttempts
	stored.LockedUntil = p.LockedUntil
	return nil
}

func (r *fakePrincipalRepo) ListCredentials(_ context.Context) ([]auth.Credential, error) {
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

// fakeSessionRepo is an in-memory SessionRepository.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*auth.WebSession // keyed by token hash

	createErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*auth.WebSession)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *auth.WebSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.sessions[session.TokenHash] = session
	return nil
}

func (r *fakeSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*auth.WebSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return session, nil
}

func (r *fakeSessionRepo) UpdateLastSeen(_ context.Context, id ulid.ULID, at time.Time) error {
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

func (r *fakeSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[tokenHash]; !ok {
		return auth.ErrNotFound
	}
	delete(r.sessions, tokenHash)
	return nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
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

// fakePendingRepo is an in-memory PendingChangeRepository. Redeem
// applies the stored secret hash to the linked principal repo the way
// the real transaction does.
type fakePendingRepo struct {
	mu      sync.Mutex
	changes map[string]*auth.PendingCredentialChange // keyed by token hash

	principals *fakePrincipalRepo
	createErr  error
}

func newFakePendingRepo(principals *fakePrincipalRepo) *fakePendingRepo {
	return &fakePendingRepo{
		changes:    make(map[string]*auth.PendingCredentialChange),
		principals: principals,
	}
}

func (r *fakePendingRepo) Create(_ context.Context, change *auth.PendingCredentialChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.changes[change.TokenHash] = change
	return nil
}

func (r *fakePendingRepo) Redeem(ctx context.Context, tokenHash string, window time.Duration) (*auth.PendingCredentialChange, error) {
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

func (r *fakePendingRepo) DeleteExpired(_ context.Context, window time.Duration) (int64, error) {
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

// fakeMailer records activation mails and optionally fails delivery.
type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

type sentMail struct {
	email string
	url   string
}

func (m *fakeMailer) SendActivation(_ context.Context, email, activationURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMail{email: email, url: activationURL})
	return nil
}

func (m *fakeMailer) lastSent() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// fakeDeliveryMetrics records mail delivery outcomes.
type fakeDeliveryMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *fakeDeliveryMetrics) AddMailDelivery(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *fakeDeliveryMetrics) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes...)
}

// Compile-time interface checks.
var (
	_ auth.PasswordHasher          = (*fastHasher)(nil)
	_ auth.PrincipalRepository     = (*fakePrincipalRepo)(nil)
	_ auth.SessionRepository       = (*fakeSessionRepo)(nil)
	_ auth.PendingChangeRepository = (*fakePendingRepo)(nil)
	_ auth.ActivationMailer        = (*fakeMailer)(nil)
	_ auth.DeliveryMetrics         = (*fakeDeliveryMetrics)(nil)
)
