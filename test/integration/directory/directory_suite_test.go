// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

//go:build integration

package directory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/auth"
	authpg "github.com/contactdir/contactdir/internal/auth/postgres"
	"github.com/contactdir/contactdir/internal/business"
	businesspg "github.com/contactdir/contactdir/internal/business/postgres"
	"github.com/contactdir/contactdir/internal/contact"
	contactpg "github.com/contactdir/contactdir/internal/contact/postgres"
	"github.com/contactdir/contactdir/internal/directory"
	"github.com/contactdir/contactdir/internal/email"
	emailpg "github.com/contactdir/contactdir/internal/email/postgres"
	"github.com/contactdir/contactdir/internal/store"
)

func TestDirectory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Directory Integration Suite")
}

// clock is a settable time source shared by the auth service and the specs.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv holds all resources needed for integration tests.
type testEnv struct {
	ctx       context.Context
	pool      *pgxpool.Pool
	container testcontainers.Container
	clock     *clock

	Recorder   *audit.Recorder
	Auth       *auth.Service
	Businesses *business.Service
	Contacts   *contact.Service
	Emails     *email.Service
	Directory  *directory.Service

	// AdminID is a bootstrapped admin used as created_by.
	AdminID string
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupDirectoryTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

func setupDirectoryTestEnv() (*testEnv, error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("contactdir_test"),
		postgres.WithUsername("contactdir"),
		postgres.WithPassword("contactdir"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}
	_ = migrator.Close()

	pool, err := store.Open(ctx, store.Options{URL: connStr})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	e := &testEnv{
		ctx:       ctx,
		pool:      pool,
		container: container,
		clock:     &clock{now: time.Now().UTC()},
	}
	if err := e.wire(); err != nil {
		e.cleanup()
		return nil, err
	}
	return e, nil
}

func (e *testEnv) wire() error {
	var err error
	e.Recorder = audit.NewRecorder(audit.NewPostgresWriter(e.pool))
	e.Auth, err = auth.NewService(
		authpg.NewUserRepository(e.pool),
		authpg.NewSessionRepository(e.pool),
		e.Recorder,
		auth.WithClock(e.clock.Now),
	)
	if err != nil {
		return err
	}
	if e.Businesses, err = business.NewService(businesspg.NewRepository(e.pool), e.Recorder); err != nil {
		return err
	}
	if e.Contacts, err = contact.NewService(contactpg.NewRepository(e.pool), e.Recorder); err != nil {
		return err
	}
	if e.Emails, err = email.NewService(emailpg.NewRepository(e.pool), e.Recorder); err != nil {
		return err
	}
	e.Directory, err = directory.NewService(directory.ServiceConfig{
		Businesses: e.Businesses,
		Contacts:   e.Contacts,
		Emails:     e.Emails,
		Transactor: store.NewTransactor(e.pool),
		Audit:      e.Recorder,
	})
	if err != nil {
		return err
	}

	id, _, err := e.Auth.BootstrapAdmin(e.ctx, auth.NewUserInput{
		Username: "admin",
		Email:    "admin@example.com",
		Password: adminPassword,
		FullName: "Directory Admin",
	})
	if err != nil {
		return err
	}
	e.AdminID = id.String()
	return nil
}

const adminPassword = "correct-horse-battery"

func (e *testEnv) cleanup() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(e.ctx)
	}
}

// resetDirectory removes directory rows between specs. Users stay.
func resetDirectory(ctx context.Context) {
	for _, table := range []string{
		"customer_emails", "supplier_emails",
		"customer_contacts", "supplier_contacts",
		"contacts", "businesses", "web_sessions", "audit_log",
	} {
		_, err := env.pool.Exec(ctx, "DELETE FROM "+table)
		Expect(err).NotTo(HaveOccurred())
	}
}

// newBusiness creates a business directly through the business service.
func newBusiness(ctx context.Context, code string, customer, supplier bool) ulid.ULID {
	id, _, err := env.Businesses.Create(ctx, business.Input{
		Name:       code + " Manufacturing",
		Code:       code,
		IsCustomer: customer,
		IsSupplier: supplier,
	}, env.AdminID)
	Expect(err).NotTo(HaveOccurred())
	return id
}

// newContact creates a contact with the given names.
func newContact(ctx context.Context, first, last string) ulid.ULID {
	id, _, err := env.Contacts.CreateContact(ctx, contact.Input{FirstName: first, LastName: last}, env.AdminID)
	Expect(err).NotTo(HaveOccurred())
	return id
}

// auditCount counts audit rows for table.
func auditCount(ctx context.Context, table string) int {
	var n int
	err := env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log WHERE table_name = $1", table).Scan(&n)
	Expect(err).NotTo(HaveOccurred())
	return n
}
