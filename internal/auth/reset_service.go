// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/samber/oops"
)

// DefaultMailTimeout bounds the synchronous delivery attempt so one
// slow SMTP conversation cannot stall the request.
const DefaultMailTimeout = 10 * time.Second

// ActivationMailer delivers the activation link for a pending
// credential change. Implementations own transport details (SMTP,
// capture in tests).
type ActivationMailer interface {
	SendActivation(ctx context.Context, email, activationURL string) error
}

// DeliveryMetrics receives the outcome of each activation mail attempt.
// Implemented by the observability metrics; nil-safe via the noop
// default.
type DeliveryMetrics interface {
	AddMailDelivery(outcome string)
}

type noopDeliveryMetrics struct{}

func (noopDeliveryMetrics) AddMailDelivery(string) {}

// ResetService implements the two-phase password reset protocol: the
// new secret is never written to the durable credential until the
// requester proves control of the registered email by redeeming the
// mailed token.
type ResetService struct {
	principals  PrincipalRepository
	pending     PendingChangeRepository
	hasher      PasswordHasher
	mailer      ActivationMailer
	baseURL     string
	mailTimeout time.Duration
	metrics     DeliveryMetrics
	logger      *slog.Logger
}

// NewResetService creates a ResetService. baseURL is the externally
// reachable origin the activation link is built on. A nil metrics sink
// and a nil logger fall back to no-op and slog.Default respectively; a
// zero mailTimeout uses DefaultMailTimeout.
func NewResetService(
	principals PrincipalRepository,
	pending PendingChangeRepository,
	hasher PasswordHasher,
	mailer ActivationMailer,
	baseURL string,
	mailTimeout time.Duration,
	metrics DeliveryMetrics,
	logger *slog.Logger,
) (*ResetService, error) {
	if principals == nil {
		return nil, oops.Errorf("principal repository is required")
	}
	if pending == nil {
		return nil, oops.Errorf("pending change repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("activation mailer is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, oops.Code("RESET_INVALID_BASE_URL").With("base_url", baseURL).Wrap(err)
	}
	if mailTimeout <= 0 {
		mailTimeout = DefaultMailTimeout
	}
	if metrics == nil {
		metrics = noopDeliveryMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetService{
		principals:  principals,
		pending:     pending,
		hasher:      hasher,
		mailer:      mailer,
		baseURL:     baseURL,
		mailTimeout: mailTimeout,
		metrics:     metrics,
		logger:      logger,
	}, nil
}

// RequestReset records a pending credential change for email and mails
// the activation link. The new secret is hashed immediately and only
// the hash is stored.
//
// Unregistered addresses fail with RESET_UNKNOWN_EMAIL; unlike login,
// this discloses account existence. That asymmetry is the product's
// documented behavior and is kept.
//
// A delivery failure is logged with enough context for manual
// remediation but is not surfaced: the pending row stays in place and
// the caller sees success.
func (s *ResetService) RequestReset(ctx context.Context, email, newSecret string) error {
	if _, err := s.principals.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_UNKNOWN_EMAIL").
				With("email", email).
				Errorf("email is not registered")
		}
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "get by email").Wrap(err)
	}

	secretHash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "hash new secret").Wrap(err)
	}

	token, tokenHash, err := GenerateResetToken()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "generate token").Wrap(err)
	}

	change, err := NewPendingCredentialChange(email, secretHash, tokenHash)
	if err != nil {
		return err
	}

	if err := s.pending.Create(ctx, change); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "create pending change").Wrap(err)
	}

	mailCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()

	if err := s.mailer.SendActivation(mailCtx, email, s.activationURL(token)); err != nil {
		// The pending row is kept and the caller still sees success;
		// the log line is the only trail for manual remediation.
		s.metrics.AddMailDelivery("failure")
		s.logger.Error("activation mail delivery failed",
			"destination", email,
			"token_prefix", token[:8],
			"requested_at", change.CreatedAt,
			"error", err.Error(),
		)
		return nil
	}

	s.metrics.AddMailDelivery("success")
	return nil
}

// Redeem consumes the token and applies the pending credential change.
// Lookup matches on the token hash and the 15-minute window in one
// predicate; stale and unknown tokens are indistinguishable to the
// caller. The credential update and the row deletion happen in a
// single transaction, so a crash cannot leave a redeemed-but-unapplied
// (or applied-but-replayable) state. Session state is untouched: the
// user logs in again with the new secret.
func (s *ResetService) Redeem(ctx context.Context, token string) error {
	if token == "" {
		return oops.Code("RESET_TOKEN_INVALID").Errorf("link is invalid or has expired")
	}

	change, err := s.pending.Redeem(ctx, HashResetToken(token), ResetWindow)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Errorf("link is invalid or has expired")
		}
		return oops.Code("RESET_REDEEM_FAILED").Wrap(err)
	}

	s.logger.Info("credential change activated",
		"destination", change.Email,
		"requested_at", change.CreatedAt,
	)
	return nil
}

// activationURL builds the link embedded in the mail body.
func (s *ResetService) activationURL(token string) string {
	return s.baseURL + "/activar_contrasena?token=" + url.QueryEscape(token)
}
