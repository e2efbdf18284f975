// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fashionhall/storefront/internal/config"
	"github.com/fashionhall/storefront/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *MigrateDeps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back and inspect the embedded schema migrations.
The database is read from the DATABASE_URL environment variable.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(deps, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return oops.With("operation", "apply migrations").Wrap(err)
				}
				return printVersion(cmd, m)
			})
		},
	})

	var all bool
	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (one step by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := parseSteps(args[0])
				if err != nil {
					return err
				}
				steps = n
			}
			return withMigrator(deps, func(m Migrator) error {
				if all {
					cmd.Println("Rolling back all migrations...")
					if err := m.Down(); err != nil {
						return oops.With("operation", "roll back migrations").Wrap(err)
					}
				} else {
					cmd.Printf("Rolling back %d migration(s)...\n", steps)
					if err := m.Steps(-steps); err != nil {
						return oops.With("operation", "roll back migrations").Wrap(err)
					}
				}
				return printVersion(cmd, m)
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration, dropping all tables")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(deps, func(m Migrator) error {
				st, err := m.Status()
				if err != nil {
					return oops.With("operation", "get migration status").Wrap(err)
				}
				printStatus(cmd, st)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(deps, func(m Migrator) error {
				return printVersion(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long: `Mark VERSION as applied and clear the dirty flag. Use after fixing
a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(deps, func(m Migrator) error {
				if err := m.Force(v); err != nil {
					return oops.With("operation", "force version").Wrap(err)
				}
				cmd.Printf("Forced version %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator opens a migrator for DATABASE_URL, runs fn and closes it.
func withMigrator(deps *MigrateDeps, fn func(Migrator) error) (err error) {
	databaseURL := deps.DatabaseURLGetter()
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", config.EnvDatabaseURL).
			Errorf("%s environment variable is required", config.EnvDatabaseURL)
	}

	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(m)
}

func printVersion(cmd *cobra.Command, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return oops.With("operation", "read schema version").Wrap(err)
	}
	cmd.Printf("Schema version: %s\n", describeVersion(v))
	if dirty {
		cmd.Println("WARNING: schema is dirty; fix it by hand, then run 'storefront migrate force VERSION'")
	}
	return nil
}

func printStatus(cmd *cobra.Command, st *store.Status) {
	cmd.Printf("Schema version: %s\n", describeVersion(st.Version))
	if st.Dirty {
		cmd.Println("WARNING: schema is dirty")
	}
	for _, v := range st.Applied {
		cmd.Printf("  [applied] %s\n", describeVersion(v))
	}
	for _, v := range st.Pending {
		cmd.Printf("  [pending] %s\n", describeVersion(v))
	}
	if len(st.Pending) == 0 {
		cmd.Println("Schema is up to date")
	}
}

func describeVersion(v uint) string {
	if v == 0 {
		return "0 (empty)"
	}
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return strconv.FormatUint(uint64(v), 10)
	}
	return name
}

func parseSteps(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, oops.Code("INVALID_STEPS").With("steps", s).Errorf("steps must be a positive integer, got %q", s)
	}
	return n, nil
}

func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("version", s).Errorf("version must be a non-negative integer, got %q", s)
	}
	return v, nil
}
