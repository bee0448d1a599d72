// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

//go:build integration

package cli_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("Migrate and seed commands", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
	})

	It("applies migrations and reports the status", func() {
		output, err := contactdir(ctx, "migrate")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
		Expect(output).To(ContainSubstring("Migrations completed successfully"))

		output, err = contactdir(ctx, "migrate", "status")
		Expect(err).NotTo(HaveOccurred(), "status failed: %s", output)
		Expect(output).To(ContainSubstring("(clean)"))
		Expect(output).To(ContainSubstring("Pending: none"))
	})

	It("seeds the sample directory", func() {
		output, err := contactdir(ctx, "migrate")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)

		output, err = contactdir(ctx, "seed")
		Expect(err).NotTo(HaveOccurred(), "seed failed: %s", output)
		Expect(output).To(ContainSubstring("Created business ACME"))
		Expect(output).To(ContainSubstring("Seeding complete: 3 created, 0 skipped"))

		var name string
		var customer, supplier bool
		err = env.pool.QueryRow(ctx,
			"SELECT name, is_customer, is_supplier FROM businesses WHERE code = $1", "ACME",
		).Scan(&name, &customer, &supplier)
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("Acme Industrial Supply"))
		Expect(customer).To(BeTrue())
		Expect(supplier).To(BeTrue())

		var primaries int
		err = env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM supplier_contacts WHERE is_primary").Scan(&primaries)
		Expect(err).NotTo(HaveOccurred())
		Expect(primaries).To(Equal(2))
	})

	It("is idempotent (running twice succeeds without duplicates)", func() {
		output, err := contactdir(ctx, "migrate")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)

		output, err = contactdir(ctx, "seed")
		Expect(err).NotTo(HaveOccurred(), "first seed failed: %s", output)

		output, err = contactdir(ctx, "seed")
		Expect(err).NotTo(HaveOccurred(), "second seed failed: %s", output)
		Expect(output).To(ContainSubstring("Business ACME already exists, skipping"))
		Expect(output).To(ContainSubstring("0 created, 3 skipped"))

		var count int
		err = env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM businesses").Scan(&count)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(3))
	})

	It("bootstraps an admin account from stdin", func() {
		output, err := contactdir(ctx, "migrate")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)

		output, err = contactdirWithStdin(ctx, "", "user", "create-admin",
			"--username", "admin", "--email", "admin@example.com", "--password-stdin")
		Expect(err).To(HaveOccurred(), "empty stdin must be refused: %s", output)

		output, err = contactdirWithStdin(ctx, "correct-horse-battery\n", "user", "create-admin",
			"--username", "admin", "--email", "admin@example.com", "--password-stdin")
		Expect(err).NotTo(HaveOccurred(), "create-admin failed: %s", output)
		Expect(output).To(ContainSubstring("Created admin admin"))

		var role string
		err = env.pool.QueryRow(ctx, "SELECT role FROM users WHERE username = 'admin'").Scan(&role)
		Expect(err).NotTo(HaveOccurred())
		Expect(role).To(Equal("admin"))
	})
})
