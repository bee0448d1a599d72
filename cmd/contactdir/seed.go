// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/config"
	"github.com/contactdir/contactdir/internal/directory"
	"github.com/contactdir/contactdir/internal/logging"
	"github.com/contactdir/contactdir/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

//go:embed seeds/default.yaml
var defaultSeed []byte

// seedFile is the layout of a seed YAML file.
type seedFile struct {
	Businesses []directory.CreateInput `json:"businesses"`
}

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// BusinessCreator is the directory operation seeding uses.
type BusinessCreator interface {
	CreateBusiness(ctx context.Context, in directory.CreateInput, createdBy string) (directory.Created, audit.Result, error)
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load businesses, contacts and emails from a YAML file",
		Long: `Creates the businesses listed in a seed file together with their
primary contact and emails. Without --file the built-in sample data is
loaded. This command is idempotent: businesses whose code already exists
are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", "", "seed YAML file (default: built-in sample data)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	cmd.AddCommand(NewValidateSeedCmd())

	return cmd
}

// NewValidateSeedCmd creates the seed validate subcommand.
func NewValidateSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Validate a seed file without touching the database",
		Long: `Parses and validates a seed file. Does NOT require a database
connection. Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch seed errors early:
  contactdir seed validate seeds.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			seeds, err := readSeedFile(path)
			if err != nil {
				return err
			}
			if err := validateSeeds(seeds); err != nil {
				return err
			}
			cmd.Printf("%d businesses valid\n", len(seeds))
			return nil
		},
	}
}

func runSeed(cmd *cobra.Command, _ []string, cfg *seedConfig) error {
	seeds, err := readSeedFile(cfg.file)
	if err != nil {
		return err
	}
	if err := validateSeeds(seeds); err != nil {
		return err
	}

	appCfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if appCfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database url is required: set --database-url, %s or DATABASE_URL", config.EnvName("database.url"))
	}
	level, err := logging.ParseLevel(appCfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(serviceName, version, appCfg.Log.Format, logging.WithLevel(level))

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Open(ctx, store.Options{URL: appCfg.Database.URL, ConnectRetries: 1})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	recorder := audit.NewRecorder(audit.NewPostgresWriter(pool), audit.WithLogger(logger))
	svc, err := newServices(pool, recorder, appCfg, logger)
	if err != nil {
		return err
	}

	created, skipped, err := seedBusinesses(ctx, cmd, svc.directory, seeds)
	if err != nil {
		return err
	}
	cmd.Printf("Seeding complete: %d created, %d skipped\n", created, skipped)
	return nil
}

// seedBusinesses creates each business, skipping codes that already exist.
func seedBusinesses(ctx context.Context, cmd *cobra.Command, creator BusinessCreator, seeds []directory.CreateInput) (created, skipped int, err error) {
	ctx = audit.WithActor(ctx, audit.Actor{UserAgent: "contactdir seed"})
	for _, in := range seeds {
		code := in.Business.Code
		out, _, createErr := creator.CreateBusiness(ctx, in, "")
		if errors.Is(createErr, business.ErrCodeExists) {
			cmd.Printf("Business %s already exists, skipping\n", code)
			skipped++
			continue
		}
		if createErr != nil {
			return created, skipped, oops.Code("SEED_FAILED").
				With("operation", "create business").
				With("code", code).
				Wrap(createErr)
		}
		cmd.Printf("Created business %s\n", code)
		slog.InfoContext(ctx, "seeded business", "code", code, "business_id", out.BusinessID)
		created++
	}
	return created, skipped, nil
}

// readSeedFile loads path, or the built-in seed when path is empty.
func readSeedFile(path string) ([]directory.CreateInput, error) {
	data := defaultSeed
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
		}
	}
	return parseSeed(data)
}

// parseSeed decodes seed YAML. Keys follow the JSON API field names, so
// the document is converted to JSON and decoded with unknown fields
// rejected.
func parseSeed(data []byte) ([]directory.CreateInput, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("SEED_INVALID_YAML").Wrap(err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, oops.Code("SEED_INVALID_YAML").Wrap(err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var f seedFile
	if err := dec.Decode(&f); err != nil {
		return nil, oops.Code("SEED_INVALID").Wrap(err)
	}
	if len(f.Businesses) == 0 {
		return nil, oops.Code("SEED_INVALID").Errorf("seed file lists no businesses")
	}
	return f.Businesses, nil
}

// validateSeeds validates every entry and rejects repeated codes, reporting
// all problems at once.
func validateSeeds(seeds []directory.CreateInput) error {
	var problems []string
	codes := make(map[string]int, len(seeds))
	for i := range seeds {
		if err := seeds[i].Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("businesses[%d]: %v", i, err))
			continue
		}
		code := seeds[i].Business.Code
		if prev, ok := codes[code]; ok {
			problems = append(problems, fmt.Sprintf("businesses[%d]: code %s repeats businesses[%d]", i, code, prev))
			continue
		}
		codes[code] = i
	}
	if len(problems) > 0 {
		for _, p := range problems {
			slog.Error("seed validation failed", "detail", p)
		}
		return oops.Code("SEED_INVALID").
			With("problems", problems).
			Errorf("validation failed: %d of %d businesses invalid", len(problems), len(seeds))
	}
	return nil
}
