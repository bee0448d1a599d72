// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/business"
)

// RowQuerier is satisfied by store.Pool and pgx.Tx.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// flagColumn returns the businesses column marking participation in rel.
func flagColumn(rel business.Relation) (string, error) {
	switch rel {
	case business.RelationCustomer:
		return "is_customer", nil
	case business.RelationSupplier:
		return "is_supplier", nil
	default:
		return "", oops.Code("BUSINESS_INVALID_RELATION").
			With("relation", string(rel)).
			Errorf("unknown relation %q", rel)
	}
}

// RequireRelation checks that business id exists and takes part in rel.
// The row is locked FOR SHARE so the flag cannot be cleared before the
// caller's write commits; call it on the transaction doing that write.
// It returns business.ErrNotFound or business.ErrRelationMismatch, wrapped
// without a code so callers can add their own.
func RequireRelation(ctx context.Context, q RowQuerier, rel business.Relation, id ulid.ULID) error {
	col, err := flagColumn(rel)
	if err != nil {
		return err
	}

	var has bool
	err = q.QueryRow(ctx, `SELECT `+col+` FROM businesses WHERE id = $1 FOR SHARE`, id.String()).Scan(&has)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return oops.With("business_id", id.String()).Wrap(business.ErrNotFound)
	case err != nil:
		return oops.Code("BUSINESS_QUERY_FAILED").
			With("operation", "check business relation").
			With("business_id", id.String()).
			Wrap(err)
	case !has:
		return oops.With("business_id", id.String()).
			With("relation", string(rel)).
			Wrap(business.ErrRelationMismatch)
	}
	return nil
}
