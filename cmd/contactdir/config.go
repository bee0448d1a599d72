// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package main

import (
	"net/url"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/contactdir/contactdir/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the config file JSON Schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a config file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateFile(args[0]); err != nil {
				return err
			}
			cmd.Printf("%s is valid\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after merging the config file, .env file,
environment and flags. The database password is masked.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			out, err := showConfig(cfg)
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	})

	return cmd
}

// showConfig renders cfg as YAML using the config file keys.
func showConfig(cfg *config.Config) ([]byte, error) {
	c := *cfg
	c.Database.URL = redactURL(c.Database.URL)
	doc := map[string]any{
		"http":    map[string]any{"addr": c.HTTP.Addr},
		"metrics": map[string]any{"addr": c.Metrics.Addr},
		"database": map[string]any{
			"url":             c.Database.URL,
			"connect_retries": c.Database.ConnectRetries,
		},
		"session": map[string]any{
			"lifetime":       c.Session.Lifetime.String(),
			"cookie_secure":  c.Session.CookieSecure,
			"sweep_interval": c.Session.SweepInterval.String(),
		},
		"auth":  map[string]any{"login_path": c.Auth.LoginPath},
		"audit": map[string]any{"fallback_path": c.Audit.FallbackPath},
		"log": map[string]any{
			"format": c.Log.Format,
			"level":  c.Log.Level,
		},
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	return out, nil
}

// redactURL masks the password of a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
