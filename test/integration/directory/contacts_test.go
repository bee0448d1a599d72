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
	"github.com/contactdir/contactdir/internal/contact"
)

var _ = Describe("Contacts", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetDirectory(ctx)
	})

	Describe("primary contact", func() {
		var acme, alice, bob ulid.ULID

		BeforeEach(func() {
			acme = newBusiness(ctx, "ACME", true, false)
			alice = newContact(ctx, "Alice", "Anders")
			bob = newContact(ctx, "Bob", "Baker")
		})

		It("moves to the most recently linked primary", func() {
			_, err := env.Contacts.Link(ctx, business.RelationCustomer, alice, acme, contact.RoleBuyer, true)
			Expect(err).NotTo(HaveOccurred())
			_, err = env.Contacts.Link(ctx, business.RelationCustomer, bob, acme, contact.RoleEngineering, true)
			Expect(err).NotTo(HaveOccurred())

			primary, err := env.Contacts.PrimaryContact(ctx, business.RelationCustomer, acme)
			Expect(err).NotTo(HaveOccurred())
			Expect(primary.ID).To(Equal(bob))

			linked, err := env.Contacts.Contacts(ctx, business.RelationCustomer, acme)
			Expect(err).NotTo(HaveOccurred())
			Expect(linked).To(HaveLen(2))
			Expect(linked[0].ID).To(Equal(bob), "primary contact is listed first")
			Expect(linked[1].IsPrimary).To(BeFalse())
		})

		It("keeps customer and supplier primaries apart", func() {
			both := newBusiness(ctx, "BOTH", true, true)
			_, err := env.Contacts.Link(ctx, business.RelationCustomer, alice, both, "", true)
			Expect(err).NotTo(HaveOccurred())
			_, err = env.Contacts.Link(ctx, business.RelationSupplier, bob, both, contact.RoleSales, true)
			Expect(err).NotTo(HaveOccurred())

			customer, err := env.Contacts.PrimaryContact(ctx, business.RelationCustomer, both)
			Expect(err).NotTo(HaveOccurred())
			Expect(customer.ID).To(Equal(alice))
			Expect(customer.Role).To(Equal(contact.RolePrimary))

			supplier, err := env.Contacts.PrimaryContact(ctx, business.RelationSupplier, both)
			Expect(err).NotTo(HaveOccurred())
			Expect(supplier.ID).To(Equal(bob))
		})

		It("relinking updates role and primary flag in place", func() {
			_, err := env.Contacts.Link(ctx, business.RelationCustomer, alice, acme, contact.RoleBuyer, false)
			Expect(err).NotTo(HaveOccurred())
			_, err = env.Contacts.Link(ctx, business.RelationCustomer, alice, acme, contact.RoleQuality, true)
			Expect(err).NotTo(HaveOccurred())

			linked, err := env.Contacts.Contacts(ctx, business.RelationCustomer, acme)
			Expect(err).NotTo(HaveOccurred())
			Expect(linked).To(HaveLen(1))
			Expect(linked[0].Role).To(Equal(contact.RoleQuality))
			Expect(linked[0].IsPrimary).To(BeTrue())
		})

		It("reports no primary once the primary is unlinked", func() {
			_, err := env.Contacts.Link(ctx, business.RelationCustomer, alice, acme, "", true)
			Expect(err).NotTo(HaveOccurred())
			_, err = env.Contacts.Unlink(ctx, business.RelationCustomer, alice, acme)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Contacts.PrimaryContact(ctx, business.RelationCustomer, acme)
			Expect(err).To(MatchError(contact.ErrNotFound))

			By("keeping the contact itself")
			c, err := env.Contacts.GetContact(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.FirstName).To(Equal("Alice"))

			By("treating a second unlink as done")
			_, err = env.Contacts.Unlink(ctx, business.RelationCustomer, alice, acme)
			Expect(err).NotTo(HaveOccurred())
		})

		It("audits links on the relation's link table", func() {
			_, err := env.Contacts.Link(ctx, business.RelationCustomer, alice, acme, "", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(auditCount(ctx, "customer_contacts")).To(Equal(1))
		})
	})

	Describe("validation", func() {
		It("rejects a supplier role on a customer link", func() {
			acme := newBusiness(ctx, "ACME", true, false)
			alice := newContact(ctx, "Alice", "Anders")

			_, err := env.Contacts.Link(ctx, business.RelationCustomer, alice, acme, contact.RoleSales, false)
			Expect(err).To(HaveOccurred())
		})

		It("reports a missing business", func() {
			alice := newContact(ctx, "Alice", "Anders")
			_, err := env.Contacts.Link(ctx, business.RelationCustomer, alice, ulid.Make(), "", false)
			Expect(err).To(MatchError(business.ErrNotFound))
		})

		It("refuses a customer link on a supplier-only business", func() {
			nwc := newBusiness(ctx, "NWC", false, true)
			alice := newContact(ctx, "Alice", "Anders")

			_, err := env.Contacts.Link(ctx, business.RelationCustomer, alice, nwc, contact.RoleBuyer, true)
			Expect(err).To(MatchError(business.ErrRelationMismatch))

			linked, err := env.Contacts.Contacts(ctx, business.RelationCustomer, nwc)
			Expect(err).NotTo(HaveOccurred())
			Expect(linked).To(BeEmpty())
			Expect(auditCount(ctx, "customer_contacts")).To(BeZero())
		})
	})

	Describe("search and update", func() {
		It("finds contacts by name, email and phone", func() {
			id, _, err := env.Contacts.CreateContact(ctx, contact.Input{
				FirstName: "Carmen",
				LastName:  "Diaz",
				Email:     "carmen.diaz@castings.example",
				Phone:     "555-0199",
			}, env.AdminID)
			Expect(err).NotTo(HaveOccurred())
			newContact(ctx, "Dmitri", "Volkov")

			for _, term := range []string{"carmen diaz", "CASTINGS", "0199"} {
				found, err := env.Contacts.SearchContacts(ctx, term)
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(HaveLen(1), "term %q", term)
				Expect(found[0].ID).To(Equal(id))
			}

			found, err := env.Contacts.SearchContacts(ctx, "%")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeEmpty(), "LIKE wildcards are matched literally")
		})

		It("updates every field", func() {
			id := newContact(ctx, "Erin", "Fox")
			_, err := env.Contacts.UpdateContact(ctx, id, contact.Input{
				FirstName: "Erin",
				LastName:  "Fox-Hale",
				JobTitle:  "Quality Lead",
			})
			Expect(err).NotTo(HaveOccurred())

			c, err := env.Contacts.GetContact(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.LastName).To(Equal("Fox-Hale"))
			Expect(c.JobTitle).To(Equal("Quality Lead"))
			Expect(auditCount(ctx, "contacts")).To(Equal(2))
		})
	})
})
