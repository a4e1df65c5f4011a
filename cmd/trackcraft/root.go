// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the TrackCraft CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trackcraft",
		Short: "TrackCraft - project progress tracking for clients and developers",
		Long: `TrackCraft is a small web service where clients and developers
register themselves, developers record project progress, and
credential changes are confirmed over email.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedAdminCmd())

	return cmd
}
