// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/trackcraft/trackcraft/internal/auth"
	authpg "github.com/trackcraft/trackcraft/internal/auth/postgres"
	"github.com/trackcraft/trackcraft/internal/config"
	"github.com/trackcraft/trackcraft/internal/store"
)

// NewSeedAdminCmd creates the seed-admin subcommand.
func NewSeedAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the bootstrap administrator if it does not exist",
		Long: `Create the administrative account the service needs for first login.
The account is only created when no administrator with the configured
username exists; an existing account is never modified.`,
		RunE: runSeedAdmin,
	}

	defaults := config.Defaults()
	cmd.Flags().String("database_url", defaults.DatabaseURL, "PostgreSQL connection URL")
	cmd.Flags().String("admin.username", defaults.Admin.Username, "administrator username")
	cmd.Flags().String("admin.password", defaults.Admin.Password, "administrator password")

	return cmd
}

func runSeedAdmin(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	registerSvc, err := auth.NewRegisterService(authpg.NewPrincipalRepository(pool), auth.NewBcryptHasher(), slog.Default())
	if err != nil {
		return err
	}

	if err := registerSvc.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		return err
	}

	if cfg.UsesDefaultAdminCredentials() {
		cmd.PrintErrln("warning: administrator is using built-in development credentials")
	}
	cmd.Printf("administrator %q is ready\n", cfg.Admin.Username)
	return nil
}
