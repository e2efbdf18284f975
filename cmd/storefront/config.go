// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fashionhall/storefront/internal/config"
	"github.com/fashionhall/storefront/internal/xdg"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	return newConfigCmd(os.Getenv)
}

func newConfigCmd(getenv func(string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for config files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return oops.With("operation", "generate schema").Wrap(err)
			}
			if _, err := cmd.OutOrStdout().Write(append(schema, '\n')); err != nil {
				return oops.With("operation", "write schema").Wrap(err)
			}
			return nil
		},
	})

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration that serve would run with, after merging
defaults, the config file, flags and the environment. Without --config,
$XDG_CONFIG_HOME/storefront/config.yaml is used when present. Secrets are
reported as set or unset, never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveConfigPath(cmd, getenv)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path, cmd.Flags(), getenv)
			if err != nil {
				return err //nolint:wrapcheck // config errors carry their own codes
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return oops.With("operation", "encode config").Wrap(err)
			}
			cmd.Print(string(out))
			cmd.Printf("# %s: %s\n", config.EnvJWTSecret, jwtSecretState(cfg))
			cmd.Printf("# %s: %s\n", config.EnvDatabaseURL, setOrUnset(cfg.DatabaseURL))
			return nil
		},
	}
	config.RegisterFlags(show.Flags())
	cmd.AddCommand(show)

	return cmd
}

func jwtSecretState(cfg *config.Config) string {
	if cfg.UsesDevSecret() {
		return "unset (development default)"
	}
	return setOrUnset(cfg.JWTSecret)
}

func setOrUnset(v string) string {
	if v == "" {
		return "unset"
	}
	return "set"
}

// resolveConfigPath returns the --config flag, or the XDG default config
// file when the flag is unset. An empty result means defaults only.
func resolveConfigPath(cmd *cobra.Command, getenv func(string) string) (string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", oops.With("flag", "config").Wrap(err)
	}
	if path != "" {
		return path, nil
	}
	return xdg.FindConfigFile(getenv), nil
}
