// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// CredentialMigrator upgrades legacy plaintext-stored credentials to
// bcrypt. The sweep is idempotent: a value the classifier already
// recognizes as hashed is never touched, so a credential observed as
// hashed can neither regress nor be re-hashed. Two concurrent sweeps
// at worst write two fresh hashes for the same plaintext row;
// last-write-wins and both verify.
type CredentialMigrator struct {
	principals PrincipalRepository
	hasher     PasswordHasher
	logger     *slog.Logger
}

// NewCredentialMigrator creates a CredentialMigrator. A nil logger
// falls back to slog.Default.
func NewCredentialMigrator(principals PrincipalRepository, hasher PasswordHasher, logger *slog.Logger) (*CredentialMigrator, error) {
	if principals == nil {
		return nil, oops.Errorf("principal repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialMigrator{principals: principals, hasher: hasher, logger: logger}, nil
}

// Run sweeps every stored credential across both principal classes and
// replaces any value not recognized as hashed. Returns the number of
// upgraded rows; a fully migrated store is a cheap no-op.
func (m *CredentialMigrator) Run(ctx context.Context) (int, error) {
	credentials, err := m.principals.ListCredentials(ctx)
	if err != nil {
		return 0, oops.Code("MIGRATION_SWEEP_FAILED").With("operation", "list credentials").Wrap(err)
	}

	upgraded := 0
	for _, cred := range credentials {
		if cred.PasswordHash == "" || m.hasher.IsHashed(cred.PasswordHash) {
			continue
		}

		hash, err := m.hasher.Hash(cred.PasswordHash)
		if err != nil {
			return upgraded, oops.Code("MIGRATION_SWEEP_FAILED").
				With("operation", "hash credential").
				With("principal_id", cred.PrincipalID.String()).
				Wrap(err)
		}

		if err := m.principals.UpdatePassword(ctx, cred.Kind, cred.PrincipalID, hash); err != nil {
			return upgraded, oops.Code("MIGRATION_SWEEP_FAILED").
				With("operation", "update password").
				With("principal_id", cred.PrincipalID.String()).
				Wrap(err)
		}
		upgraded++
	}

	if upgraded > 0 {
		m.logger.Info("plaintext credentials migrated", "count", upgraded)
	}
	return upgraded, nil
}
