// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package xdg locates storefront files under the XDG Base Directory layout.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "storefront"

// ConfigDir returns the storefront config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
// getenv is usually os.Getenv.
func ConfigDir(getenv func(string) string) string {
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile(getenv func(string) string) string {
	return filepath.Join(ConfigDir(getenv), "config.yaml")
}

// FindConfigFile returns ConfigFile if it exists as a regular file, or ""
// when there is no default config.
func FindConfigFile(getenv func(string) string) string {
	path := ConfigFile(getenv)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return path
}
