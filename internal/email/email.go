// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package email manages the typed email addresses a business keeps per
// relation. Rows are never deleted; Remove deactivates them.
package email

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/business"
)

// Type classifies an email address.
type Type string

// Email types. Customers use only TypeContact and TypeDepartment.
const (
	TypeContact    Type = "contact"
	TypeDepartment Type = "department"
	TypeSales      Type = "sales"
	TypeSupport    Type = "support"
	TypeBilling    Type = "billing"
	TypeQuality    Type = "quality"
	TypeShipping   Type = "shipping"
	TypeReturns    Type = "returns"
	TypeGeneral    Type = "general"
)

// TypesFor returns the type vocabulary of rel.
func TypesFor(rel business.Relation) []Type {
	switch rel {
	case business.RelationCustomer:
		return []Type{TypeContact, TypeDepartment}
	case business.RelationSupplier:
		return []Type{
			TypeContact, TypeDepartment, TypeSales, TypeSupport, TypeBilling,
			TypeQuality, TypeShipping, TypeReturns, TypeGeneral,
		}
	default:
		return nil
	}
}

// ValidType reports whether t belongs to rel's vocabulary.
func ValidType(rel business.Relation, t Type) bool {
	return slices.Contains(TypesFor(rel), t)
}

// Email is one business email address.
type Email struct {
	ID          ulid.ULID `json:"id"`
	BusinessID  ulid.ULID `json:"business_id"`
	Address     string    `json:"email"`
	Type        Type      `json:"email_type"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AddInput carries the fields for adding an email.
type AddInput struct {
	BusinessID  ulid.ULID `json:"business_id"`
	Address     string    `json:"email"`
	Type        Type      `json:"email_type"`
	Description string    `json:"description"`
}

// Validate normalises the input and checks it against rel.
func (in *AddInput) Validate(rel business.Relation) error {
	in.Address = strings.TrimSpace(in.Address)
	in.Type = Type(strings.ToLower(strings.TrimSpace(string(in.Type))))
	in.Description = strings.TrimSpace(in.Description)

	if !Validate(in.Address) {
		return oops.Code("EMAIL_INVALID").
			With("email", in.Address).
			Public("invalid email address").
			Errorf("invalid email address %q", in.Address)
	}
	if !ValidType(rel, in.Type) {
		return oops.Code("EMAIL_INVALID_TYPE").
			With("relation", string(rel)).
			With("email_type", string(in.Type)).
			Public("invalid email type for "+string(rel)).
			Errorf("email type %q not allowed for %s", in.Type, rel)
	}
	return nil
}

// Format selects a projection for List.
type Format string

// Formats.
const (
	// FormatList returns the emails themselves.
	FormatList Format = "array"
	// FormatString returns the addresses joined with ", ".
	FormatString Format = "string"
	// FormatGrouped returns addresses keyed by type.
	FormatGrouped Format = "grouped"
)

// ParseFormat converts s to a Format; empty means FormatList.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatList, "list":
		return FormatList, nil
	case FormatString, FormatGrouped:
		return f, nil
	default:
		return "", oops.Code("EMAIL_INVALID_FORMAT").
			With("format", s).
			Public("format must be array, string or grouped").
			Errorf("unknown format %q", s)
	}
}

// Join returns the addresses of emails separated by ", ".
func Join(emails []Email) string {
	addrs := make([]string, 0, len(emails))
	for _, e := range emails {
		addrs = append(addrs, e.Address)
	}
	return strings.Join(addrs, ", ")
}

// Group returns addresses keyed by type, preserving order within a type.
func Group(emails []Email) map[Type][]string {
	grouped := make(map[Type][]string)
	for _, e := range emails {
		grouped[e.Type] = append(grouped[e.Type], e.Address)
	}
	return grouped
}

// Project renders emails in format f: []Email, string or map[Type][]string.
func Project(emails []Email, f Format) any {
	switch f {
	case FormatString:
		return Join(emails)
	case FormatGrouped:
		return Group(emails)
	default:
		return emails
	}
}

// Repository manages email persistence per relation.
type Repository interface {
	// Add inserts e unless the business already has the address as an
	// active email, in which case it returns false.
	Add(ctx context.Context, rel business.Relation, e *Email) (bool, error)

	// Get retrieves an email by ID, active or not.
	Get(ctx context.Context, rel business.Relation, id ulid.ULID) (*Email, error)

	// ListActive returns active emails ordered by type then address. An
	// empty t matches every type.
	ListActive(ctx context.Context, rel business.Relation, businessID ulid.ULID, t Type) ([]Email, error)

	// Deactivate sets is_active to false.
	Deactivate(ctx context.Context, rel business.Relation, id ulid.ULID) error

	// Exists reports whether businessID has address as an active email,
	// ignoring case.
	Exists(ctx context.Context, rel business.Relation, businessID ulid.ULID, address string) (bool, error)
}
