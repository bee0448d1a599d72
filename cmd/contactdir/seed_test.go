// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/contact"
	"github.com/contactdir/contactdir/internal/directory"
	"github.com/contactdir/contactdir/pkg/errutil"
)

func TestDefaultSeedIsValid(t *testing.T) {
	seeds, err := parseSeed(defaultSeed)
	require.NoError(t, err)
	require.NoError(t, validateSeeds(seeds))

	require.Len(t, seeds, 3)
	acme := seeds[0]
	assert.Equal(t, "ACME", acme.Business.Code)
	assert.True(t, acme.Business.IsCustomer)
	assert.True(t, acme.Business.IsSupplier)
	require.NotNil(t, acme.Business.CreditLimit)
	assert.InDelta(t, 50000.0, *acme.Business.CreditLimit, 0.001)
	require.NotNil(t, acme.Contact)
	assert.Equal(t, "Dana", acme.Contact.FirstName)
	assert.Len(t, acme.Emails, 3)

	assert.Equal(t, contact.RoleSales, seeds[1].Contact.Role)
	assert.Equal(t, business.RelationSupplier, seeds[1].Emails[0].Relation, "relation defaults to the business's only side")
}

func TestParseSeed_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantCode string
	}{
		{"not yaml", "businesses: [", "SEED_INVALID_YAML"},
		{"unknown key", "businesses:\n  - business: {name: A, code: A, is_customer: true}\n    colour: red\n", "SEED_INVALID"},
		{"empty", "businesses: []\n", "SEED_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeed([]byte(tt.data))
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestValidateSeeds_ReportsEveryProblem(t *testing.T) {
	seeds := []directory.CreateInput{
		{Business: business.Input{Name: "Acme", Code: "acme", IsCustomer: true}},
		{Business: business.Input{Name: "Acme Again", Code: "ACME", IsSupplier: true}},
		{Business: business.Input{Name: "No Side", Code: "NS"}},
	}
	err := validateSeeds(seeds)
	errutil.AssertErrorCode(t, err, "SEED_INVALID")
	assert.Contains(t, err.Error(), "2 of 3")
}

func TestSeedValidateCommand(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("businesses:\n  - business: {name: Acme, code: acme, is_customer: true}\n"), 0o600))

	output, err := execute(t, "seed", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, output, "1 businesses valid")

	output, err = execute(t, "seed", "validate")
	require.NoError(t, err)
	assert.Contains(t, output, "3 businesses valid")

	_, err = execute(t, "seed", "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	errutil.AssertErrorCode(t, err, "SEED_READ_FAILED")
}

func TestRunSeed_MissingDatabaseURL(t *testing.T) {
	isolate(t)

	_, err := execute(t, "seed")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

type fakeCreator struct {
	existing map[string]bool
	fail     string
	created  []string
	actor    audit.Actor
}

func (c *fakeCreator) CreateBusiness(ctx context.Context, in directory.CreateInput, _ string) (directory.Created, audit.Result, error) {
	c.actor, _ = audit.ActorFrom(ctx)
	switch {
	case c.existing[in.Business.Code]:
		return directory.Created{}, audit.Result{}, oops.Code("BUSINESS_CODE_EXISTS").Wrap(business.ErrCodeExists)
	case in.Business.Code == c.fail:
		return directory.Created{}, audit.Result{}, errors.New("connection reset")
	}
	c.created = append(c.created, in.Business.Code)
	return directory.Created{BusinessID: ulid.Make()}, audit.Result{}, nil
}

func TestSeedBusinesses(t *testing.T) {
	seeds := []directory.CreateInput{
		{Business: business.Input{Code: "ACME"}},
		{Business: business.Input{Code: "NWC"}},
	}

	t.Run("skips existing codes", func(t *testing.T) {
		creator := &fakeCreator{existing: map[string]bool{"ACME": true}}
		cmd := &cobra.Command{}
		out := new(bytes.Buffer)
		cmd.SetOut(out)

		created, skipped, err := seedBusinesses(context.Background(), cmd, creator, seeds)
		require.NoError(t, err)
		assert.Equal(t, 1, created)
		assert.Equal(t, 1, skipped)
		assert.Equal(t, []string{"NWC"}, creator.created)
		assert.Contains(t, out.String(), "Business ACME already exists, skipping")
		assert.Equal(t, "contactdir seed", creator.actor.UserAgent)
	})

	t.Run("stops on failure", func(t *testing.T) {
		creator := &fakeCreator{fail: "ACME"}
		cmd := &cobra.Command{}
		cmd.SetOut(new(bytes.Buffer))

		created, _, err := seedBusinesses(context.Background(), cmd, creator, seeds)
		errutil.AssertErrorCode(t, err, "SEED_FAILED")
		errutil.AssertErrorContext(t, err, "code", "ACME")
		assert.Zero(t, created)
		assert.Empty(t, creator.created)
	})
}
