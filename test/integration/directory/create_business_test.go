// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

//go:build integration

package directory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/contact"
	"github.com/contactdir/contactdir/internal/directory"
	"github.com/contactdir/contactdir/internal/email"
)

var _ = Describe("Creating a business", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetDirectory(ctx)
	})

	acmeInput := func() directory.CreateInput {
		limit := 50000.0
		return directory.CreateInput{
			Business: business.Input{
				Name:        "Acme Industrial",
				Code:        "acme",
				IsCustomer:  true,
				IsSupplier:  true,
				CreditLimit: &limit,
			},
			Contact: &directory.ContactInput{
				Input: contact.Input{FirstName: "Dana", LastName: "Whitfield"},
			},
			Emails: []directory.EmailInput{
				{Relation: business.RelationCustomer, Address: "po@acme.example", Type: email.TypeDepartment},
				{Relation: business.RelationSupplier, Address: "sales@acme.example", Type: email.TypeSales},
			},
		}
	}

	It("creates the business, its primary contact and emails together", func() {
		created, res, err := env.Directory.CreateBusiness(ctx, acmeInput(), env.AdminID)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.OK()).To(BeTrue())
		Expect(created.ContactID).NotTo(BeNil())
		Expect(created.EmailIDs).To(HaveLen(2))

		detail, err := env.Directory.Detail(ctx, created.BusinessID)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.Business.Code).To(Equal("ACME"))
		Expect(detail.CustomerContacts).To(HaveLen(1))
		Expect(detail.CustomerContacts[0].IsPrimary).To(BeTrue())
		Expect(detail.SupplierContacts).To(HaveLen(1))
		Expect(detail.CustomerEmails[email.TypeDepartment]).To(ConsistOf("po@acme.example"))
		Expect(detail.SupplierEmails[email.TypeSales]).To(ConsistOf("sales@acme.example"))

		By("writing the audit rows after the commit")
		Expect(auditCount(ctx, "businesses")).To(Equal(1))
		Expect(auditCount(ctx, "contacts")).To(Equal(1))
		Expect(auditCount(ctx, "customer_contacts")).To(Equal(1))
		Expect(auditCount(ctx, "supplier_contacts")).To(Equal(1))
		Expect(auditCount(ctx, "customer_emails")).To(Equal(1))
		Expect(auditCount(ctx, "supplier_emails")).To(Equal(1))
	})

	It("links a one-sided role on its own side and as Primary on the other", func() {
		in := acmeInput()
		in.Contact.Role = contact.RoleBuyer

		created, _, err := env.Directory.CreateBusiness(ctx, in, env.AdminID)
		Expect(err).NotTo(HaveOccurred())

		detail, err := env.Directory.Detail(ctx, created.BusinessID)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.CustomerContacts).To(HaveLen(1))
		Expect(detail.CustomerContacts[0].Role).To(Equal(contact.RoleBuyer))
		Expect(detail.SupplierContacts).To(HaveLen(1))
		Expect(detail.SupplierContacts[0].Role).To(Equal(contact.RolePrimary))
	})

	It("leaves nothing behind when a later step fails", func() {
		in := acmeInput()
		in.Emails = append(in.Emails, directory.EmailInput{
			Relation: business.RelationSupplier, Address: "SALES@acme.example", Type: email.TypeGeneral,
		})

		_, _, err := env.Directory.CreateBusiness(ctx, in, env.AdminID)
		Expect(err).To(MatchError(email.ErrDuplicate))

		summaries, err := env.Businesses.ListSimple(ctx, business.FilterAll)
		Expect(err).NotTo(HaveOccurred())
		Expect(summaries).To(BeEmpty())

		var contacts, audits int
		Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM contacts").Scan(&contacts)).To(Succeed())
		Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&audits)).To(Succeed())
		Expect(contacts).To(BeZero())
		Expect(audits).To(BeZero())
	})

	It("rejects a second business with the same code in any case", func() {
		_, _, err := env.Directory.CreateBusiness(ctx, acmeInput(), env.AdminID)
		Expect(err).NotTo(HaveOccurred())

		in := acmeInput()
		in.Business.Code = "Acme"
		in.Emails = nil
		_, _, err = env.Directory.CreateBusiness(ctx, in, env.AdminID)
		Expect(err).To(MatchError(business.ErrCodeExists))
	})

	It("counts businesses by side", func() {
		newBusiness(ctx, "C1", true, false)
		newBusiness(ctx, "S1", false, true)
		newBusiness(ctx, "B1", true, true)

		stats, err := env.Businesses.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Total).To(BeEquivalentTo(3))
		Expect(stats.Customers).To(BeEquivalentTo(2))
		Expect(stats.Suppliers).To(BeEquivalentTo(2))
		Expect(stats.Both).To(BeEquivalentTo(1))

		suppliers, err := env.Businesses.ListSimple(ctx, business.FilterSuppliers)
		Expect(err).NotTo(HaveOccurred())
		Expect(suppliers).To(HaveLen(2))
	})
})
