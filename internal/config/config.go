// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package config loads contactdir settings.
//
// Sources are layered, later ones winning: built-in defaults, the YAML
// config file, a .env file, CONTACTDIR_ environment variables and finally
// command-line flags that were set explicitly.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/contactdir/contactdir/internal/xdg"
)

// EnvPrefix prefixes environment variables read by Load.
const EnvPrefix = "CONTACTDIR_"

// Config holds every contactdir setting.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" json:"http"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
	Database DatabaseConfig `koanf:"database" json:"database"`
	Session  SessionConfig  `koanf:"session" json:"session"`
	Auth     AuthConfig     `koanf:"auth" json:"auth"`
	Audit    AuditConfig    `koanf:"audit" json:"audit"`
	Log      LogConfig      `koanf:"log" json:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" json:"addr" jsonschema:"description=API listen address"`
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr" jsonschema:"description=metrics and health listen address; empty disables it"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL            string `koanf:"url" json:"url" jsonschema:"description=PostgreSQL connection URL"`
	ConnectRetries int    `koanf:"connect_retries" json:"connect_retries" jsonschema:"minimum=0"`
}

// SessionConfig configures web sessions.
type SessionConfig struct {
	Lifetime      time.Duration `koanf:"lifetime" json:"lifetime" jsonschema:"type=string,description=idle timeout such as 1h or 30m"`
	CookieSecure  bool          `koanf:"cookie_secure" json:"cookie_secure"`
	SweepInterval time.Duration `koanf:"sweep_interval" json:"sweep_interval" jsonschema:"type=string"`
}

// AuthConfig configures authentication pages.
type AuthConfig struct {
	LoginPath string `koanf:"login_path" json:"login_path"`
}

// AuditConfig configures audit logging.
type AuditConfig struct {
	FallbackPath string `koanf:"fallback_path" json:"fallback_path" jsonschema:"description=JSONL file for entries the database rejects; default is in the XDG state dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		HTTP:     HTTPConfig{Addr: "127.0.0.1:8080"},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{ConnectRetries: 5},
		Session: SessionConfig{
			Lifetime:      time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Auth: AuthConfig{LoginPath: "/login"},
		Log:  LogConfig{Format: "json", Level: "info"},
	}
}

// Validate checks the loaded settings.
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Addr == "":
		return invalid("http.addr", "is required")
	case c.Database.ConnectRetries < 0:
		return invalid("database.connect_retries", "cannot be negative")
	case c.Session.Lifetime <= 0:
		return invalid("session.lifetime", "must be positive")
	case c.Session.SweepInterval <= 0:
		return invalid("session.sweep_interval", "must be positive")
	case !strings.HasPrefix(c.Auth.LoginPath, "/"):
		return invalid("auth.login_path", "must start with /")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", "must be json or text")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "must be debug, info, warn or error")
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, msg)
}

// keys lists every settable config key.
var keys = []string{
	"http.addr",
	"metrics.addr",
	"database.url",
	"database.connect_retries",
	"session.lifetime",
	"session.cookie_secure",
	"session.sweep_interval",
	"auth.login_path",
	"audit.fallback_path",
	"log.format",
	"log.level",
}

// envKeys maps CONTACTDIR_SESSION_COOKIE_SECURE style names onto keys.
var envKeys = func() map[string]string {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[EnvName(k)] = k
	}
	return m
}()

// EnvName returns the environment variable that sets key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// flagKeys maps command-line flags onto keys.
var flagKeys = map[string]string{
	"http-addr":        "http.addr",
	"metrics-addr":     "metrics.addr",
	"database-url":     "database.url",
	"connect-retries":  "database.connect_retries",
	"session-lifetime": "session.lifetime",
	"cookie-secure":    "session.cookie_secure",
	"audit-fallback":   "audit.fallback_path",
	"log-format":       "log.format",
	"log-level":        "log.level",
}

// RegisterFlags adds the config flags to flags, defaulting to Default().
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("config", "", "config file path (default: XDG_CONFIG_HOME/contactdir/config.yaml)")
	flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("http-addr", d.HTTP.Addr, "API listen address")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health listen address (empty = disabled)")
	flags.String("database-url", d.Database.URL, "PostgreSQL connection URL")
	flags.Int("connect-retries", d.Database.ConnectRetries, "database connect attempts before giving up")
	flags.Duration("session-lifetime", d.Session.Lifetime, "idle time before a session is logged out")
	flags.Bool("cookie-secure", d.Session.CookieSecure, "mark the session cookie Secure")
	flags.String("audit-fallback", d.Audit.FallbackPath, "JSONL file for audit entries the database rejects")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// Load builds a Config from every source. flags may be nil; only flags
// registered by RegisterFlags are read.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, explicit := configPath(flags); path != "" {
		if err := loadFile(k, path, explicit); err != nil {
			return nil, err
		}
	}

	if err := loadDotenv(flags); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string { return envKeys[s] }), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		cb := func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, cb), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "unmarshal").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	if err := ValidateFile(path); err != nil {
		return err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
	}
	return nil
}

// configPath returns the file to read and whether it was asked for.
func configPath(flags *pflag.FlagSet) (string, bool) {
	if flags != nil {
		if p, err := flags.GetString("config"); err == nil && p != "" {
			return p, true
		}
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p, true
	}
	p, err := xdg.ConfigFile()
	if err != nil {
		return "", false
	}
	return p, false
}

func loadDotenv(flags *pflag.FlagSet) error {
	path := ".env"
	if flags != nil {
		if p, err := flags.GetString("env-file"); err == nil {
			path = p
		}
	}
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return oops.Code("CONFIG_LOAD_FAILED").With("source", "dotenv").With("path", path).Wrap(err)
}
