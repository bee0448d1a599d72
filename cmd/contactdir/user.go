// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/auth"
	authpg "github.com/contactdir/contactdir/internal/auth/postgres"
	"github.com/contactdir/contactdir/internal/config"
	"github.com/contactdir/contactdir/internal/store"
)

// PasswordEnv is read by user create-admin when --password-stdin is unset.
const PasswordEnv = config.EnvPrefix + "ADMIN_PASSWORD"

const defaultUserTimeout = 30 * time.Second

type userConfig struct {
	username      string
	email         string
	fullName      string
	passwordStdin bool
	timeout       time.Duration
}

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newCreateAdminCmd())
	return cmd
}

func newCreateAdminCmd() *cobra.Command {
	cfg := &userConfig{}
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account directly in the database. Further
accounts can then be created through the API by that administrator.

The password is read from ` + PasswordEnv + `, or from the first line of
standard input with --password-stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreateAdmin(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.username, "username", "", "login name")
	cmd.Flags().StringVar(&cfg.email, "email", "", "email address")
	cmd.Flags().StringVar(&cfg.fullName, "full-name", "", "display name")
	cmd.Flags().BoolVar(&cfg.passwordStdin, "password-stdin", false, "read the password from standard input")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultUserTimeout, "timeout for database operations")
	_ = cmd.MarkFlagRequired("username") //nolint:errcheck // flag defined above
	_ = cmd.MarkFlagRequired("email")    //nolint:errcheck // flag defined above
	return cmd
}

func runCreateAdmin(cmd *cobra.Command, ucfg *userConfig) error {
	password, err := readPassword(cmd, ucfg.passwordStdin)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database url is required: set --database-url, %s or DATABASE_URL", config.EnvName("database.url"))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), ucfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Open(ctx, store.Options{URL: cfg.Database.URL})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	svc, err := auth.NewService(
		authpg.NewUserRepository(pool),
		authpg.NewSessionRepository(pool),
		audit.NewRecorder(audit.NewPostgresWriter(pool)),
	)
	if err != nil {
		return err
	}

	id, res, err := svc.BootstrapAdmin(ctx, auth.NewUserInput{
		Username: ucfg.username,
		Email:    ucfg.email,
		FullName: ucfg.fullName,
		Password: password,
	})
	if err != nil {
		return err
	}
	if res.Degraded {
		cmd.PrintErrln("warning: audit entry was not written")
	}
	cmd.Printf("Created admin %s (%s)\n", ucfg.username, id)
	return nil
}

// readPassword returns the password from stdin or PasswordEnv.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin {
		if pw := os.Getenv(PasswordEnv); pw != "" {
			return pw, nil
		}
		return "", oops.Code("PASSWORD_REQUIRED").Errorf("set %s or pass --password-stdin", PasswordEnv)
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", oops.Code("PASSWORD_REQUIRED").Wrapf(err, "read password from stdin")
		}
		return "", oops.Code("PASSWORD_REQUIRED").Errorf("password on stdin is empty")
	}
	return line, nil
}
