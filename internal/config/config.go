// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package config loads storefront configuration from defaults, an optional
// YAML file, command-line flags and the environment, in that order.
package config

import (
	"os"
	"slices"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/fashionhall/storefront/internal/auth"
	"github.com/fashionhall/storefront/internal/logging"
)

// Environment variables holding secrets. Secrets never come from files or flags.
const (
	EnvJWTSecret   = "STOREFRONT_JWT_SECRET"
	EnvDatabaseURL = "DATABASE_URL"
)

// DevJWTSecret signs tokens outside production when no secret is set.
const DevJWTSecret = "storefront-dev-secret-change-me"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the effective storefront configuration.
type Config struct {
	Env     string        `yaml:"env" jsonschema:"enum=development,enum=production,description=Deployment environment"`
	HTTP    HTTPConfig    `yaml:"http"`
	Metrics MetricsConfig `yaml:"metrics"`
	Store   StoreConfig   `yaml:"store"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`

	JWTSecret   string `yaml:"-" json:"-"`
	DatabaseURL string `yaml:"-" json:"-"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr            string     `yaml:"addr" jsonschema:"description=Listen address for the API"`
	ReadTimeout     Duration   `yaml:"read_timeout"`
	WriteTimeout    Duration   `yaml:"write_timeout"`
	ShutdownTimeout Duration   `yaml:"shutdown_timeout"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig lists origins allowed to make credentialed requests.
// Entries are glob patterns such as https://*.example.com.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig selects the user store.
type StoreConfig struct {
	Driver         string `yaml:"driver" jsonschema:"enum=postgres,enum=memory"`
	ConnectRetries int    `yaml:"connect_retries" jsonschema:"minimum=0"`
}

// AuthConfig configures password hashing.
type AuthConfig struct {
	HashAlgorithm string `yaml:"hash_algorithm" jsonschema:"enum=bcrypt,enum=argon2id"`
	BcryptCost    int    `yaml:"bcrypt_cost" jsonschema:"minimum=4,maximum=31"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Duration is a time.Duration written as "5s" in YAML and flags.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("value", string(text)).Wrap(err)
	}
	*d = Duration(v)
	return nil
}

// JSONSchema describes Duration as a Go duration string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration, for example 15s or 1m30s",
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env: EnvDevelopment,
		HTTP: HTTPConfig{
			Addr:            ":5000",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			CORS:            CORSConfig{AllowedOrigins: []string{"http://localhost:*"}},
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Store: StoreConfig{
			Driver:         DriverPostgres,
			ConnectRetries: 5,
		},
		Auth: AuthConfig{
			HashAlgorithm: string(auth.HashBcrypt),
			BcryptCost:    auth.DefaultBcryptCost,
		},
		Log: LogConfig{Format: "json", Level: "info"},
	}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"env":            "env",
	"addr":           "http.addr",
	"metrics-addr":   "metrics.addr",
	"store":          "store.driver",
	"hash-algorithm": "auth.hash_algorithm",
	"cors-origin":    "http.cors.allowed_origins",
	"log-format":     "log.format",
	"log-level":      "log.level",
}

// RegisterFlags adds the configuration flags to fs. Flag defaults mirror
// Default so help output shows effective values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a YAML config file")
	fs.String("env", d.Env, "environment (development|production)")
	fs.String("addr", d.HTTP.Addr, "API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address, empty to disable")
	fs.String("store", d.Store.Driver, "user store (postgres|memory)")
	fs.String("hash-algorithm", d.Auth.HashAlgorithm, "password hash for new accounts (bcrypt|argon2id)")
	fs.StringSlice("cors-origin", d.HTTP.CORS.AllowedOrigins, "allowed CORS origin pattern, repeatable")
	fs.String("log-format", d.Log.Format, "log format (json|text)")
	fs.String("log-level", d.Log.Level, "log level (debug|info|warn|error)")
}

// Load builds the configuration. path may be empty. Only flags changed on
// the command line override the file. getenv is usually os.Getenv.
func Load(path string, fs *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if k.Exists("http.cors.allowed_origins") {
		cfg.HTTP.CORS.AllowedOrigins = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}

	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	c.JWTSecret = getenv(EnvJWTSecret)
	c.DatabaseURL = getenv(EnvDatabaseURL)
	if c.JWTSecret == "" && c.Env != EnvProduction {
		c.JWTSecret = DevJWTSecret
	}
}

// UsesDevSecret reports whether tokens are signed with DevJWTSecret.
func (c *Config) UsesDevSecret() bool {
	return c.JWTSecret == DevJWTSecret
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if !slices.Contains([]string{EnvDevelopment, EnvProduction}, c.Env) {
		return invalid("env", "unknown environment %q", c.Env)
	}
	if c.Env == EnvProduction && (c.JWTSecret == "" || c.JWTSecret == DevJWTSecret) {
		return invalid(EnvJWTSecret, "%s must be set in production", EnvJWTSecret)
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "listen address is required")
	}
	for key, d := range map[string]Duration{
		"http.read_timeout":     c.HTTP.ReadTimeout,
		"http.write_timeout":    c.HTTP.WriteTimeout,
		"http.shutdown_timeout": c.HTTP.ShutdownTimeout,
	} {
		if d <= 0 {
			return invalid(key, "must be positive, got %s", d.Std())
		}
	}
	switch c.Store.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return invalid(EnvDatabaseURL, "%s is required for the postgres store", EnvDatabaseURL)
		}
	case DriverMemory:
	default:
		return invalid("store.driver", "unknown store driver %q", c.Store.Driver)
	}
	if c.Store.ConnectRetries < 0 {
		return invalid("store.connect_retries", "must not be negative")
	}
	if _, err := auth.NewHasher(auth.HashAlgorithm(c.Auth.HashAlgorithm), c.Auth.BcryptCost); err != nil {
		return invalid("auth", "%v", err)
	}
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", "unknown log format %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "%v", err)
	}
	return nil
}
