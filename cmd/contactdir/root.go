// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/contactdir/contactdir/internal/config"
)

// NewRootCmd creates the root command for the contactdir CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contactdir",
		Short: "contactdir - business contact directory",
		Long: `contactdir keeps the customers and suppliers of a manufacturing
business together with their contacts and email addresses.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}
