// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package mail_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackcraft/trackcraft/internal/mail"
	"github.com/trackcraft/trackcraft/pkg/errutil"
)

func TestNewSMTPMailer(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     "smtp.example.com",
			Port:     587,
			From:     "no-reply@example.com",
			Username: "mailer",
			Password: "secret",
		})
		require.NoError(t, err)
		assert.NotNil(t, mailer)
	})

	t.Run("missing host", func(t *testing.T) {
		_, err := mail.NewSMTPMailer(mail.SMTPConfig{From: "no-reply@example.com"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
	})

	t.Run("missing from address", func(t *testing.T) {
		_, err := mail.NewSMTPMailer(mail.SMTPConfig{Host: "smtp.example.com"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
	})
}

// Message building fails before any network traffic, so malformed
// addresses are testable without an SMTP server. Delivery itself is
// covered by the integration environment.
func TestSMTPMailer_SendActivation_BadAddresses(t *testing.T) {
	t.Run("malformed sender", func(t *testing.T) {
		mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Host: "smtp.example.com",
			Port: 587,
			From: "not an address",
		})
		require.NoError(t, err)

		err = mailer.SendActivation(context.Background(), "ana@example.com", "http://app.test/activar_contrasena?token=x")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_BUILD_FAILED")
	})

	t.Run("malformed recipient", func(t *testing.T) {
		mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Host: "smtp.example.com",
			Port: 587,
			From: "no-reply@example.com",
		})
		require.NoError(t, err)

		err = mailer.SendActivation(context.Background(), "not an address", "http://app.test/activar_contrasena?token=x")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_BUILD_FAILED")
	})
}
