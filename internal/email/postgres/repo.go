// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package postgres implements email.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/business"
	bizpg "github.com/contactdir/contactdir/internal/business/postgres"
	"github.com/contactdir/contactdir/internal/email"
	"github.com/contactdir/contactdir/internal/store"
)

const emailColumns = `id, business_id, email, email_type, description, is_active, created_by, created_at`

// Repository implements email.Repository using PostgreSQL.
type Repository struct {
	pool store.Pool
}

// NewRepository creates a new Repository.
func NewRepository(pool store.Pool) *Repository {
	return &Repository{pool: pool}
}

// table returns the email table of rel. Table names cannot be bound as
// parameters, so only known relations get through.
func table(rel business.Relation) (string, error) {
	if !rel.Valid() {
		return "", oops.Code("EMAIL_INVALID_RELATION").With("relation", string(rel)).Errorf("unknown relation %q", rel)
	}
	return rel.Table("emails"), nil
}

// Add inserts e unless an active row with the same address exists for the
// business. The business must take part in rel. The partial unique index
// decides duplicates, so concurrent adds cannot both succeed.
func (r *Repository) Add(ctx context.Context, rel business.Relation, e *email.Email) (bool, error) {
	tbl, err := table(rel)
	if err != nil {
		return false, err
	}

	var inserted bool
	err = store.WithinTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := bizpg.RequireRelation(ctx, tx, rel, e.BusinessID); err != nil {
			switch {
			case errors.Is(err, business.ErrRelationMismatch):
				return oops.Code("EMAIL_RELATION_MISMATCH").With("table", tbl).Wrap(err)
			case errors.Is(err, business.ErrNotFound):
				return oops.Code("EMAIL_BUSINESS_NOT_FOUND").With("table", tbl).Wrap(err)
			}
			return err
		}

		var id string
		err := tx.QueryRow(ctx, `
			INSERT INTO `+tbl+` (id, business_id, email, email_type, description, is_active, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (business_id, LOWER(email)) WHERE is_active DO NOTHING
			RETURNING id
		`,
			e.ID.String(),
			e.BusinessID.String(),
			e.Address,
			string(e.Type),
			store.NullIfEmpty(e.Description),
			e.IsActive,
			store.NullIfEmpty(e.CreatedBy),
			e.CreatedAt,
		).Scan(&id)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil
		case store.IsForeignKeyViolation(err):
			return oops.Code("EMAIL_BUSINESS_NOT_FOUND").
				With("business_id", e.BusinessID.String()).
				Wrap(business.ErrNotFound)
		case err != nil:
			return oops.Code("EMAIL_INSERT_FAILED").
				With("operation", "insert email").
				With("table", tbl).
				Wrap(err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Get retrieves an email by ID, active or not.
func (r *Repository) Get(ctx context.Context, rel business.Relation, id ulid.ULID) (*email.Email, error) {
	tbl, err := table(rel)
	if err != nil {
		return nil, err
	}

	row := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+emailColumns+`
		FROM `+tbl+`
		WHERE id = $1
	`, id.String())

	e, err := scanEmail(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("EMAIL_NOT_FOUND").With("id", id.String()).Wrap(email.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("EMAIL_QUERY_FAILED").
			With("operation", "get email by id").
			With("table", tbl).
			Wrap(err)
	}
	return e, nil
}

// ListActive returns active emails ordered by type then address.
func (r *Repository) ListActive(ctx context.Context, rel business.Relation, businessID ulid.ULID, t email.Type) ([]email.Email, error) {
	tbl, err := table(rel)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + emailColumns + ` FROM ` + tbl + ` WHERE business_id = $1 AND is_active`
	args := []any{businessID.String()}
	if t != "" {
		query += ` AND email_type = $2`
		args = append(args, string(t))
	}
	query += ` ORDER BY email_type, email`

	rows, err := store.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("EMAIL_QUERY_FAILED").
			With("operation", "list emails").
			With("table", tbl).
			Wrap(err)
	}
	defer rows.Close()

	emails := []email.Email{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("EMAIL_ROWS_ERROR").With("operation", "iterate email rows").Wrap(err)
	}
	return emails, nil
}

// Deactivate sets is_active to false.
func (r *Repository) Deactivate(ctx context.Context, rel business.Relation, id ulid.ULID) error {
	tbl, err := table(rel)
	if err != nil {
		return err
	}

	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE `+tbl+` SET is_active = FALSE
		WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("EMAIL_DEACTIVATE_FAILED").
			With("operation", "deactivate email").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("EMAIL_NOT_FOUND").With("id", id.String()).Wrap(email.ErrNotFound)
	}
	return nil
}

// Exists reports whether businessID has address as an active email.
func (r *Repository) Exists(ctx context.Context, rel business.Relation, businessID ulid.ULID, address string) (bool, error) {
	tbl, err := table(rel)
	if err != nil {
		return false, err
	}

	var exists bool
	err = store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM `+tbl+` WHERE business_id = $1 AND LOWER(email) = LOWER($2) AND is_active)
	`, businessID.String(), address).Scan(&exists)
	if err != nil {
		return false, oops.Code("EMAIL_EXISTS_CHECK_FAILED").
			With("operation", "check email exists").
			With("table", tbl).
			Wrap(err)
	}
	return exists, nil
}

// scanEmail scans a single row into an Email.
// Callers are responsible for handling pgx.ErrNoRows.
func scanEmail(row pgx.Row) (*email.Email, error) {
	var (
		idStr, businessIDStr   string
		emailType              string
		description, createdBy *string
		e                      email.Email
	)
	err := row.Scan(&idStr, &businessIDStr, &e.Address, &emailType, &description, &e.IsActive, &createdBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("EMAIL_SCAN_FAILED").With("operation", "scan email").Wrap(err)
	}

	if e.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("EMAIL_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if e.BusinessID, err = ulid.Parse(businessIDStr); err != nil {
		return nil, oops.Code("EMAIL_INVALID_ID").With("business_id", businessIDStr).Wrap(err)
	}
	e.Type = email.Type(emailType)
	e.Description = store.Deref(description)
	e.CreatedBy = store.Deref(createdBy)
	return &e, nil
}

var _ email.Repository = (*Repository)(nil)
