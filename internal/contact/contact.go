// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package contact manages people and their links to businesses.
//
// A contact exists on its own and can be linked to any number of
// businesses per relation, each link carrying a role and a primary flag.
// A business has at most one primary contact per relation; setting a new
// primary clears the previous one in the same transaction, and a partial
// unique index backs the rule.
package contact

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/business"
)

// SearchLimit caps Search results.
const SearchLimit = 10

// Contact is a person in the directory.
type Contact struct {
	ID         ulid.ULID `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	PhoneExt   string    `json:"phone_ext,omitempty"`
	Mobile     string    `json:"mobile,omitempty"`
	JobTitle   string    `json:"job_title,omitempty"`
	Department string    `json:"department,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FullName returns "First Last".
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Input carries the mutable contact fields. Empty optional fields are
// stored as NULL.
type Input struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	PhoneExt   string `json:"phone_ext"`
	Mobile     string `json:"mobile"`
	JobTitle   string `json:"job_title"`
	Department string `json:"department"`
	Notes      string `json:"notes"`
}

// Validate trims every field and requires both names. The email field is
// not checked here.
func (in *Input) Validate() error {
	for _, f := range []*string{
		&in.FirstName, &in.LastName, &in.Email, &in.Phone, &in.PhoneExt,
		&in.Mobile, &in.JobTitle, &in.Department, &in.Notes,
	} {
		*f = strings.TrimSpace(*f)
	}
	if in.FirstName == "" || in.LastName == "" {
		return oops.Code("CONTACT_INVALID").
			Public("first and last name are required").
			Errorf("first and last name are required")
	}
	return nil
}

// values returns the input as an audit value map.
func (in *Input) values() map[string]any {
	return map[string]any{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"email":      in.Email,
		"phone":      in.Phone,
		"phone_ext":  in.PhoneExt,
		"mobile":     in.Mobile,
		"job_title":  in.JobTitle,
		"department": in.Department,
		"notes":      in.Notes,
	}
}

// Role labels a contact's function at a business.
type Role string

// Link roles. Each relation has its own vocabulary.
const (
	RolePrimary         Role = "Primary"
	RoleBuyer           Role = "Buyer"
	RoleEngineering     Role = "Engineering"
	RoleQuality         Role = "Quality"
	RoleFinance         Role = "Finance"
	RoleShipping        Role = "Shipping"
	RoleManagement      Role = "Management"
	RoleSales           Role = "Sales"
	RoleTechnical       Role = "Technical"
	RoleBilling         Role = "Billing"
	RoleCustomerService Role = "Customer Service"
)

// RolesFor returns the role vocabulary of rel.
func RolesFor(rel business.Relation) []Role {
	switch rel {
	case business.RelationCustomer:
		return []Role{RolePrimary, RoleBuyer, RoleEngineering, RoleQuality, RoleFinance, RoleShipping, RoleManagement}
	case business.RelationSupplier:
		return []Role{RolePrimary, RoleSales, RoleTechnical, RoleQuality, RoleBilling, RoleCustomerService, RoleManagement}
	default:
		return nil
	}
}

// ValidRole reports whether r belongs to rel's vocabulary.
func ValidRole(rel business.Relation, r Role) bool {
	return slices.Contains(RolesFor(rel), r)
}

// Linked is a contact together with its link to one business.
type Linked struct {
	Contact
	Role      Role      `json:"role"`
	IsPrimary bool      `json:"is_primary"`
	LinkedAt  time.Time `json:"linked_at"`
}

// Link describes a contact-business link to write.
type Link struct {
	ContactID  ulid.ULID
	BusinessID ulid.ULID
	Role       Role
	IsPrimary  bool
}

// Repository manages contact persistence.
type Repository interface {
	// Create inserts a contact.
	Create(ctx context.Context, c *Contact) error

	// Update overwrites the mutable fields and returns the number of rows
	// changed.
	Update(ctx context.Context, id ulid.ULID, in Input, at time.Time) (int64, error)

	// Get retrieves a contact by ID.
	Get(ctx context.Context, id ulid.ULID) (*Contact, error)

	// Link upserts a link. When l.IsPrimary is set, other primary links of
	// the business are cleared in the same transaction.
	Link(ctx context.Context, rel business.Relation, l Link) error

	// Unlink deletes a link and reports whether one existed.
	Unlink(ctx context.Context, rel business.Relation, contactID, businessID ulid.ULID) (bool, error)

	// ListLinked returns active contacts linked to a business, primary
	// first, then by last and first name.
	ListLinked(ctx context.Context, rel business.Relation, businessID ulid.ULID) ([]Linked, error)

	// Primary returns the active primary contact of a business.
	Primary(ctx context.Context, rel business.Relation, businessID ulid.ULID) (*Linked, error)

	// Search matches term against full name, email and phone of active
	// contacts, ordered by last and first name.
	Search(ctx context.Context, term string, limit int) ([]Contact, error)
}
