// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

// Package mail delivers activation links over authenticated SMTP
// submission. One synchronous attempt per message; retries and
// queueing are out of scope.
package mail

import (
	"context"
	"fmt"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"
)

// activationSubject is the subject line of the activation message.
const activationSubject = "Confirm your password change"

// activationBody is the plaintext message template. The single %s is
// the activation URL.
const activationBody = `Hello,

You requested a password change.
To confirm and activate your new password, open the following link:

%s

If you did not request this change, ignore this message.
`

// SMTPConfig holds the submission connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// SMTPMailer sends activation messages over STARTTLS submission.
// It implements auth.ActivationMailer.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

// NewSMTPMailer creates an SMTPMailer. The connection is established
// lazily per send; deadline control comes from the caller's context.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("from address is required")
	}

	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return nil, oops.Code("MAIL_CLIENT_FAILED").With("host", cfg.Host).Wrap(err)
	}

	return &SMTPMailer{client: client, from: cfg.From}, nil
}

// SendActivation sends the activation link to email. The context
// bounds the whole SMTP conversation.
func (m *SMTPMailer) SendActivation(ctx context.Context, email, activationURL string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return oops.Code("MAIL_BUILD_FAILED").With("from", m.from).Wrap(err)
	}
	if err := msg.To(email); err != nil {
		return oops.Code("MAIL_BUILD_FAILED").With("to", email).Wrap(err)
	}
	msg.Subject(activationSubject)
	msg.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(activationBody, activationURL))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("to", email).Wrap(err)
	}
	return nil
}
