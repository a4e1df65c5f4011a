// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/trackcraft/trackcraft/internal/auth"
	authpg "github.com/trackcraft/trackcraft/internal/auth/postgres"
	"github.com/trackcraft/trackcraft/internal/config"
	"github.com/trackcraft/trackcraft/internal/logging"
	"github.com/trackcraft/trackcraft/internal/mail"
	"github.com/trackcraft/trackcraft/internal/observability"
	"github.com/trackcraft/trackcraft/internal/progress"
	"github.com/trackcraft/trackcraft/internal/store"
	"github.com/trackcraft/trackcraft/internal/web"
	"github.com/trackcraft/trackcraft/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the TrackCraft web server",
		Long: `Start the web server, apply pending database migrations, ensure the
bootstrap administrator exists, and upgrade any legacy plaintext
credentials before accepting requests.`,
		RunE: runServe,
	}

	defaults := config.Defaults()
	cmd.Flags().String("listen_addr", defaults.ListenAddr, "web listen address")
	cmd.Flags().String("metrics_addr", defaults.MetricsAddr, "observability listen address")
	cmd.Flags().String("database_url", defaults.DatabaseURL, "PostgreSQL connection URL")
	cmd.Flags().String("base_url", defaults.BaseURL, "externally reachable origin for activation links")
	cmd.Flags().String("log_format", defaults.LogFormat, "log format (json or text)")
	cmd.Flags().String("log_level", defaults.LogLevel, "log level (debug, info, warn, error)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("trackcraft", version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}

	principals := authpg.NewPrincipalRepository(pool)
	sessions := authpg.NewSessionRepository(pool)
	pending := authpg.NewPendingChangeRepository(pool)
	progressRepo := progress.NewPostgresRepository(pool)

	hasher := auth.NewBcryptHasher()

	mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	})
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.MetricsAddr, func() bool {
		return pool.Ping(ctx) == nil
	})
	obsErrCh, err := obsServer.Start()
	if err != nil {
		return err
	}
	metrics := obsServer.Metrics()

	authSvc, err := auth.NewAuthService(principals, sessions, hasher, logger)
	if err != nil {
		return err
	}
	registerSvc, err := auth.NewRegisterService(principals, hasher, logger)
	if err != nil {
		return err
	}
	resetSvc, err := auth.NewResetService(principals, pending, hasher, mailer, cfg.BaseURL, cfg.MailTimeout, metrics, logger)
	if err != nil {
		return err
	}
	progressSvc, err := progress.NewService(progressRepo, logger)
	if err != nil {
		return err
	}

	if cfg.UsesDefaultAdminCredentials() {
		logger.Warn("bootstrap administrator is using built-in development credentials, change them before exposing this service")
	}
	if err := registerSvc.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		return err
	}

	credMigrator, err := auth.NewCredentialMigrator(principals, hasher, logger)
	if err != nil {
		return err
	}
	upgraded, err := credMigrator.Run(ctx)
	if err != nil {
		return err
	}
	metrics.CredentialsMigrated.Add(float64(upgraded))

	evictor, err := worker.NewEvictionWorker(sessions, pending, auth.ResetWindow, cfg.EvictionInterval, metrics, logger)
	if err != nil {
		return err
	}
	evictor.Start(ctx)

	webServer, err := web.NewServer(cfg.ListenAddr, authSvc, registerSvc, resetSvc, progressSvc, web.Options{
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	webErrCh, err := webServer.Start()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr := <-webErrCh:
		if serveErr != nil {
			return oops.Code("SERVER_FAILED").Wrap(serveErr)
		}
	case obsErr := <-obsErrCh:
		if obsErr != nil {
			return oops.Code("SERVER_FAILED").Wrap(obsErr)
		}
	}

	evictor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := webServer.Stop(shutdownCtx); err != nil {
		return err
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
