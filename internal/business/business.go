// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package business manages customer and supplier organisations.
//
// A single record carries both roles through the IsCustomer and IsSupplier
// flags; at least one must be set. Contacts and emails attach to a business
// per Relation.
package business

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field limits.
const (
	MaxNameLength = 200
	MaxCodeLength = 50
)

// Business is a customer and/or supplier organisation.
type Business struct {
	ID           ulid.ULID `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	IsCustomer   bool      `json:"is_customer"`
	IsSupplier   bool      `json:"is_supplier"`
	Address      string    `json:"address,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	PostalCode   string    `json:"postal_code,omitempty"`
	Country      string    `json:"country,omitempty"`
	PaymentTerms string    `json:"payment_terms,omitempty"`
	CreditLimit  *float64  `json:"credit_limit,omitempty"`
	LeadTimeDays *int      `json:"lead_time_days,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Has reports whether the business takes part in rel.
func (b *Business) Has(rel Relation) bool {
	switch rel {
	case RelationCustomer:
		return b.IsCustomer
	case RelationSupplier:
		return b.IsSupplier
	default:
		return false
	}
}

// Input carries the fields for creating a business.
type Input struct {
	Name         string   `json:"name"`
	Code         string   `json:"code"`
	IsCustomer   bool     `json:"is_customer"`
	IsSupplier   bool     `json:"is_supplier"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	PostalCode   string   `json:"postal_code"`
	Country      string   `json:"country"`
	PaymentTerms string   `json:"payment_terms"`
	CreditLimit  *float64 `json:"credit_limit"`
	LeadTimeDays *int     `json:"lead_time_days"`
}

// Has reports whether the input marks the business as taking part in rel.
func (in *Input) Has(rel Relation) bool {
	b := Business{IsCustomer: in.IsCustomer, IsSupplier: in.IsSupplier}
	return b.Has(rel)
}

// Validate trims fields, upper-cases the code and checks required values.
func (in *Input) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	for _, f := range []*string{&in.Address, &in.City, &in.State, &in.PostalCode, &in.Country, &in.PaymentTerms} {
		*f = strings.TrimSpace(*f)
	}

	switch {
	case in.Name == "":
		return invalid("name", "business name is required")
	case len(in.Name) > MaxNameLength:
		return invalid("name", "business name is too long")
	case in.Code == "":
		return invalid("code", "business code is required")
	case len(in.Code) > MaxCodeLength:
		return invalid("code", "business code is too long")
	case !in.IsCustomer && !in.IsSupplier:
		return invalid("type", "business must be a customer, a supplier or both")
	case in.CreditLimit != nil && *in.CreditLimit < 0:
		return invalid("credit_limit", "credit limit cannot be negative")
	case in.LeadTimeDays != nil && *in.LeadTimeDays < 0:
		return invalid("lead_time_days", "lead time cannot be negative")
	}
	return nil
}

func invalid(field, msg string) error {
	return oops.Code("BUSINESS_INVALID").With("field", field).Public(msg).Errorf("%s", msg)
}

// Filter selects businesses by relation in ListSimple.
type Filter string

// Filters.
const (
	FilterAll       Filter = "all"
	FilterCustomers Filter = "customers"
	FilterSuppliers Filter = "suppliers"
)

// ParseFilter converts s to a Filter; empty means all.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterCustomers, "customer":
		return FilterCustomers, nil
	case FilterSuppliers, "supplier":
		return FilterSuppliers, nil
	default:
		return "", oops.Code("BUSINESS_INVALID_FILTER").
			With("filter", s).
			Public("type must be all, customers or suppliers").
			Errorf("unknown filter %q", s)
	}
}

// Summary is the short projection used by pickers.
type Summary struct {
	ID         ulid.ULID `json:"id"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	IsCustomer bool      `json:"is_customer"`
	IsSupplier bool      `json:"is_supplier"`
	IsActive   bool      `json:"is_active"`
}

// Stats summarises the directory.
type Stats struct {
	Total     int64 `json:"total"`
	Customers int64 `json:"customers"`
	Suppliers int64 `json:"suppliers"`
	Both      int64 `json:"both"`
	Active    int64 `json:"active"`
	Inactive  int64 `json:"inactive"`
	Contacts  int64 `json:"contacts"`
	Emails    int64 `json:"emails"`
}

// Repository manages business persistence.
type Repository interface {
	// Create inserts a business. A taken code returns an error wrapping
	// ErrCodeExists.
	Create(ctx context.Context, b *Business) error

	// Get retrieves a business by ID.
	Get(ctx context.Context, id ulid.ULID) (*Business, error)

	// ListSimple returns summaries ordered by name.
	ListSimple(ctx context.Context, filter Filter) ([]Summary, error)

	// Stats computes directory counters.
	Stats(ctx context.Context) (Stats, error)
}
