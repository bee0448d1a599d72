// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package business

import (
	"strings"

	"github.com/samber/oops"
)

// Relation is the side of a business a contact or email belongs to.
type Relation string

// Relations.
const (
	RelationCustomer Relation = "customer"
	RelationSupplier Relation = "supplier"
)

// Valid reports whether r is a known relation.
func (r Relation) Valid() bool {
	return r == RelationCustomer || r == RelationSupplier
}

// Table returns the relation-prefixed table name, for example
// RelationSupplier.Table("emails") is "supplier_emails".
func (r Relation) Table(suffix string) string {
	return string(r) + "_" + suffix
}

// ParseRelation converts s ("customer", "customers", "supplier", ...) to a Relation.
func ParseRelation(s string) (Relation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer", "customers":
		return RelationCustomer, nil
	case "supplier", "suppliers":
		return RelationSupplier, nil
	default:
		return "", oops.Code("BUSINESS_INVALID_RELATION").
			With("relation", s).
			Public("relation must be customer or supplier").
			Errorf("unknown relation %q", s)
	}
}
