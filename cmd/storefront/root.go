// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the storefront CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "Storefront - account and session service",
		Long: `Storefront serves customer registration, login and session
lookup for the shop front end, backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}
