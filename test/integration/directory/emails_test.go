// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

//go:build integration

package directory_test

import (
	"context"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/email"
)

var _ = Describe("Emails", func() {
	var (
		ctx      context.Context
		supplier ulid.ULID
	)

	add := func(address string, t email.Type) (ulid.ULID, error) {
		id, _, err := env.Emails.Add(ctx, business.RelationSupplier, email.AddInput{
			BusinessID: supplier,
			Address:    address,
			Type:       t,
		}, env.AdminID)
		return id, err
	}

	BeforeEach(func() {
		ctx = context.Background()
		resetDirectory(ctx)
		supplier = newBusiness(ctx, "NWC", false, true)
	})

	It("soft-deletes removed addresses", func() {
		id, err := add("orders@nwc.example", email.TypeSales)
		Expect(err).NotTo(HaveOccurred())

		exists, err := env.Emails.Exists(ctx, business.RelationSupplier, supplier, "ORDERS@nwc.example")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue(), "existence ignores case")

		_, err = env.Emails.Remove(ctx, business.RelationSupplier, id)
		Expect(err).NotTo(HaveOccurred())

		exists, err = env.Emails.Exists(ctx, business.RelationSupplier, supplier, "orders@nwc.example")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeFalse())

		list, err := env.Emails.List(ctx, business.RelationSupplier, supplier, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(BeEmpty())

		By("keeping the row for history")
		e, err := env.Emails.Get(ctx, business.RelationSupplier, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.IsActive).To(BeFalse())

		By("allowing the address to be added again")
		_, err = add("orders@nwc.example", email.TypeSales)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an active duplicate regardless of case", func() {
		_, err := add("quality@nwc.example", email.TypeQuality)
		Expect(err).NotTo(HaveOccurred())

		_, err = add("Quality@NWC.example", email.TypeGeneral)
		Expect(err).To(MatchError(email.ErrDuplicate))
		Expect(auditCount(ctx, "supplier_emails")).To(Equal(1))
	})

	It("filters by type and projects the list", func() {
		_, err := add("sales@nwc.example", email.TypeSales)
		Expect(err).NotTo(HaveOccurred())
		_, err = add("billing@nwc.example", email.TypeBilling)
		Expect(err).NotTo(HaveOccurred())
		_, err = add("ar@nwc.example", email.TypeBilling)
		Expect(err).NotTo(HaveOccurred())

		billing, err := env.Emails.List(ctx, business.RelationSupplier, supplier, email.TypeBilling)
		Expect(err).NotTo(HaveOccurred())
		Expect(billing).To(HaveLen(2))

		all, err := env.Emails.List(ctx, business.RelationSupplier, supplier, "")
		Expect(err).NotTo(HaveOccurred())
		grouped := email.Group(all)
		Expect(grouped[email.TypeBilling]).To(ConsistOf("billing@nwc.example", "ar@nwc.example"))
		Expect(grouped[email.TypeSales]).To(ConsistOf("sales@nwc.example"))
	})

	It("keeps customer and supplier emails apart", func() {
		both := newBusiness(ctx, "BOTH", true, true)
		_, _, err := env.Emails.Add(ctx, business.RelationCustomer, email.AddInput{
			BusinessID: both, Address: "buyer@both.example", Type: email.TypeContact,
		}, env.AdminID)
		Expect(err).NotTo(HaveOccurred())

		exists, err := env.Emails.Exists(ctx, business.RelationSupplier, both, "buyer@both.example")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeFalse())
	})

	It("refuses a customer email on a supplier-only business", func() {
		_, _, err := env.Emails.Add(ctx, business.RelationCustomer, email.AddInput{
			BusinessID: supplier, Address: "buyer@nwc.example", Type: email.TypeContact,
		}, env.AdminID)
		Expect(err).To(MatchError(business.ErrRelationMismatch))

		all, err := env.Emails.List(ctx, business.RelationCustomer, supplier, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(BeEmpty())
	})

	It("reports a missing email on remove", func() {
		_, err := env.Emails.Remove(ctx, business.RelationSupplier, ulid.Make())
		Expect(err).To(MatchError(email.ErrNotFound))
	})
})
