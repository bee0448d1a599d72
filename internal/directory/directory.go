// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package directory composes businesses, contacts and emails into the
// multi-step operations the API exposes.
package directory

import (
	"context"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/contact"
	"github.com/contactdir/contactdir/internal/email"
)

// BusinessService is the subset of business.Service used here.
type BusinessService interface {
	Create(ctx context.Context, in business.Input, createdBy string) (ulid.ULID, audit.Result, error)
	Get(ctx context.Context, id ulid.ULID) (*business.Business, error)
}

// ContactService is the subset of contact.Service used here.
type ContactService interface {
	CreateContact(ctx context.Context, in contact.Input, createdBy string) (ulid.ULID, audit.Result, error)
	Link(ctx context.Context, rel business.Relation, contactID, businessID ulid.ULID, role contact.Role, primary bool) (audit.Result, error)
	Contacts(ctx context.Context, rel business.Relation, businessID ulid.ULID) ([]contact.Linked, error)
}

// EmailService is the subset of email.Service used here.
type EmailService interface {
	Add(ctx context.Context, rel business.Relation, in email.AddInput, createdBy string) (ulid.ULID, audit.Result, error)
	List(ctx context.Context, rel business.Relation, businessID ulid.ULID, t email.Type) ([]email.Email, error)
}

// Transactor runs fn inside one database transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditFlusher writes entries held in an audit.Buffer.
type AuditFlusher interface {
	Flush(ctx context.Context, buf *audit.Buffer) audit.Result
}

// ContactInput is the optional contact created alongside a business.
type ContactInput struct {
	contact.Input
	// Role of the link; empty means contact.RolePrimary. A business on both
	// sides links the contact as RolePrimary on the side whose vocabulary
	// lacks the role.
	Role contact.Role `json:"role"`
}

// roleFor returns the role the contact is linked with under rel.
func (c *ContactInput) roleFor(rel business.Relation) contact.Role {
	if contact.ValidRole(rel, c.Role) {
		return c.Role
	}
	return contact.RolePrimary
}

// EmailInput is one email created alongside a business.
type EmailInput struct {
	// Relation the email belongs to. Empty means the business's first
	// relation, customer before supplier.
	Relation    business.Relation `json:"relation"`
	Address     string            `json:"email"`
	Type        email.Type        `json:"email_type"`
	Description string            `json:"description"`
}

// CreateInput describes a business together with its first contact and
// emails.
type CreateInput struct {
	Business business.Input `json:"business"`
	Contact  *ContactInput  `json:"contact,omitempty"`
	Emails   []EmailInput   `json:"emails,omitempty"`
}

// Created reports the ids written by CreateBusiness.
type Created struct {
	BusinessID ulid.ULID   `json:"business_id"`
	ContactID  *ulid.ULID  `json:"contact_id,omitempty"`
	EmailIDs   []ulid.ULID `json:"email_ids,omitempty"`
}

// Detail is a business with its contacts and grouped emails per relation.
// Relations the business does not take part in are empty.
type Detail struct {
	Business         *business.Business      `json:"business"`
	CustomerContacts []contact.Linked        `json:"customer_contacts"`
	SupplierContacts []contact.Linked        `json:"supplier_contacts"`
	CustomerEmails   map[email.Type][]string `json:"customer_emails"`
	SupplierEmails   map[email.Type][]string `json:"supplier_emails"`
}

// Validate normalises the input and checks it without touching storage.
// Emails without a relation get the business's first one. The contact
// role must belong to the vocabulary of at least one of the business's
// relations.
func (in *CreateInput) Validate() error {
	if err := in.Business.Validate(); err != nil {
		return err
	}
	rels := relations(in.Business)
	if in.Contact != nil {
		if err := in.Contact.Input.Validate(); err != nil {
			return err
		}
		in.Contact.Role = contact.Role(strings.TrimSpace(string(in.Contact.Role)))
		if in.Contact.Role == "" {
			in.Contact.Role = contact.RolePrimary
		}
		role := in.Contact.Role
		if !slices.ContainsFunc(rels, func(rel business.Relation) bool { return contact.ValidRole(rel, role) }) {
			return oops.Code("CONTACT_INVALID_ROLE").
				With("role", string(role)).
				Public("invalid role for this business's contacts").
				Errorf("role %q not allowed for %v", role, rels)
		}
	}
	for i := range in.Emails {
		e := &in.Emails[i]
		if e.Relation == "" {
			e.Relation = rels[0]
		}
		if !in.Business.Has(e.Relation) {
			return oops.Code("DIRECTORY_RELATION_MISMATCH").
				With("relation", string(e.Relation)).
				With("email", e.Address).
				Public("email relation does not match the business type").
				Errorf("business is not a %s", e.Relation)
		}
		add := email.AddInput{Address: e.Address, Type: e.Type, Description: e.Description}
		if err := add.Validate(e.Relation); err != nil {
			return err
		}
		e.Address, e.Type, e.Description = add.Address, add.Type, add.Description
	}
	return nil
}
