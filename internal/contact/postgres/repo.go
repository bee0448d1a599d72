// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package postgres implements contact.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/business"
	bizpg "github.com/contactdir/contactdir/internal/business/postgres"
	"github.com/contactdir/contactdir/internal/contact"
	"github.com/contactdir/contactdir/internal/store"
)

const contactColumns = `c.id, c.first_name, c.last_name, c.email, c.phone, c.phone_ext, c.mobile,
	c.job_title, c.department, c.notes, c.is_active, c.created_by, c.created_at, c.updated_at`

// Repository implements contact.Repository using PostgreSQL.
type Repository struct {
	pool store.Pool
}

// NewRepository creates a new Repository.
func NewRepository(pool store.Pool) *Repository {
	return &Repository{pool: pool}
}

func linkTable(rel business.Relation) (string, error) {
	if !rel.Valid() {
		return "", oops.Code("CONTACT_INVALID_RELATION").With("relation", string(rel)).Errorf("unknown relation %q", rel)
	}
	return rel.Table("contacts"), nil
}

// Create inserts a new contact.
func (r *Repository) Create(ctx context.Context, c *contact.Contact) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO contacts (id, first_name, last_name, email, phone, phone_ext, mobile,
			job_title, department, notes, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		c.ID.String(),
		c.FirstName,
		c.LastName,
		store.NullIfEmpty(c.Email),
		store.NullIfEmpty(c.Phone),
		store.NullIfEmpty(c.PhoneExt),
		store.NullIfEmpty(c.Mobile),
		store.NullIfEmpty(c.JobTitle),
		store.NullIfEmpty(c.Department),
		store.NullIfEmpty(c.Notes),
		c.IsActive,
		store.NullIfEmpty(c.CreatedBy),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return oops.Code("CONTACT_CREATE_FAILED").
			With("operation", "insert contact").
			With("id", c.ID.String()).
			Wrap(err)
	}
	return nil
}

// Update overwrites the mutable fields of a contact.
func (r *Repository) Update(ctx context.Context, id ulid.ULID, in contact.Input, at time.Time) (int64, error) {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE contacts SET first_name = $2, last_name = $3, email = $4, phone = $5,
			phone_ext = $6, mobile = $7, job_title = $8, department = $9, notes = $10,
			updated_at = $11
		WHERE id = $1
	`,
		id.String(),
		in.FirstName,
		in.LastName,
		store.NullIfEmpty(in.Email),
		store.NullIfEmpty(in.Phone),
		store.NullIfEmpty(in.PhoneExt),
		store.NullIfEmpty(in.Mobile),
		store.NullIfEmpty(in.JobTitle),
		store.NullIfEmpty(in.Department),
		store.NullIfEmpty(in.Notes),
		at,
	)
	if err != nil {
		return 0, oops.Code("CONTACT_UPDATE_FAILED").
			With("operation", "update contact").
			With("id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Get retrieves a contact by ID.
func (r *Repository) Get(ctx context.Context, id ulid.ULID) (*contact.Contact, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts c
		WHERE c.id = $1
	`, id.String())

	c, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CONTACT_NOT_FOUND").With("id", id.String()).Wrap(contact.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CONTACT_QUERY_FAILED").With("operation", "get contact by id").Wrap(err)
	}
	return c, nil
}

// Link upserts a link. The business must take part in rel. Clearing the
// old primary and writing the new one share a transaction so the
// one-primary index never sees two; a concurrent writer that got there
// first surfaces as contact.ErrPrimaryConflict.
func (r *Repository) Link(ctx context.Context, rel business.Relation, l contact.Link) error {
	tbl, err := linkTable(rel)
	if err != nil {
		return err
	}

	return store.WithinTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := bizpg.RequireRelation(ctx, tx, rel, l.BusinessID); err != nil {
			switch {
			case errors.Is(err, business.ErrRelationMismatch):
				return oops.Code("CONTACT_RELATION_MISMATCH").With("table", tbl).Wrap(err)
			case errors.Is(err, business.ErrNotFound):
				return oops.Code("CONTACT_LINK_TARGET_NOT_FOUND").With("table", tbl).Wrap(err)
			}
			return err
		}

		if l.IsPrimary {
			_, err := tx.Exec(ctx, `
				UPDATE `+tbl+` SET is_primary = FALSE
				WHERE business_id = $1 AND contact_id <> $2 AND is_primary
			`, l.BusinessID.String(), l.ContactID.String())
			if err != nil {
				return oops.Code("CONTACT_LINK_FAILED").
					With("operation", "clear primary").
					With("table", tbl).
					Wrap(err)
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO `+tbl+` (contact_id, business_id, role, is_primary)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (contact_id, business_id)
			DO UPDATE SET role = EXCLUDED.role, is_primary = EXCLUDED.is_primary
		`, l.ContactID.String(), l.BusinessID.String(), string(l.Role), l.IsPrimary)
		switch {
		case store.IsUniqueViolation(err, tbl+"_one_primary"):
			return oops.Code("CONTACT_PRIMARY_CONFLICT").
				With("table", tbl).
				With("business_id", l.BusinessID.String()).
				Wrap(contact.ErrPrimaryConflict)
		case store.IsForeignKeyViolation(err):
			return oops.Code("CONTACT_LINK_TARGET_NOT_FOUND").
				With("contact_id", l.ContactID.String()).
				With("business_id", l.BusinessID.String()).
				Wrap(contact.ErrNotFound)
		case err != nil:
			return oops.Code("CONTACT_LINK_FAILED").
				With("operation", "upsert link").
				With("table", tbl).
				Wrap(err)
		}
		return nil
	})
}

// Unlink deletes a link.
func (r *Repository) Unlink(ctx context.Context, rel business.Relation, contactID, businessID ulid.ULID) (bool, error) {
	tbl, err := linkTable(rel)
	if err != nil {
		return false, err
	}

	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM `+tbl+` WHERE contact_id = $1 AND business_id = $2
	`, contactID.String(), businessID.String())
	if err != nil {
		return false, oops.Code("CONTACT_UNLINK_FAILED").
			With("operation", "delete link").
			With("table", tbl).
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// ListLinked returns active contacts linked to a business.
func (r *Repository) ListLinked(ctx context.Context, rel business.Relation, businessID ulid.ULID) ([]contact.Linked, error) {
	tbl, err := linkTable(rel)
	if err != nil {
		return nil, err
	}

	rows, err := store.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+contactColumns+`, l.role, l.is_primary, l.created_at
		FROM contacts c
		JOIN `+tbl+` l ON l.contact_id = c.id
		WHERE l.business_id = $1 AND c.is_active
		ORDER BY l.is_primary DESC, c.last_name, c.first_name
	`, businessID.String())
	if err != nil {
		return nil, oops.Code("CONTACT_QUERY_FAILED").
			With("operation", "list linked contacts").
			With("table", tbl).
			Wrap(err)
	}
	defer rows.Close()

	list := []contact.Linked{}
	for rows.Next() {
		l, err := scanLinked(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CONTACT_ROWS_ERROR").With("operation", "iterate linked contacts").Wrap(err)
	}
	return list, nil
}

// Primary returns the active primary contact of a business.
func (r *Repository) Primary(ctx context.Context, rel business.Relation, businessID ulid.ULID) (*contact.Linked, error) {
	tbl, err := linkTable(rel)
	if err != nil {
		return nil, err
	}

	row := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+contactColumns+`, l.role, l.is_primary, l.created_at
		FROM contacts c
		JOIN `+tbl+` l ON l.contact_id = c.id
		WHERE l.business_id = $1 AND l.is_primary AND c.is_active
		LIMIT 1
	`, businessID.String())

	l, err := scanLinked(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CONTACT_NO_PRIMARY").
			With("relation", string(rel)).
			With("business_id", businessID.String()).
			Wrap(contact.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CONTACT_QUERY_FAILED").With("operation", "get primary contact").Wrap(err)
	}
	return l, nil
}

// Search matches term as a case-insensitive substring. LIKE wildcards in
// term are escaped so they match literally.
func (r *Repository) Search(ctx context.Context, term string, limit int) ([]contact.Contact, error) {
	pattern := "%" + escapeLike(term) + "%"

	rows, err := store.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts c
		WHERE c.is_active
		  AND (c.first_name || ' ' || c.last_name ILIKE $1 ESCAPE '\'
		       OR c.email ILIKE $1 ESCAPE '\'
		       OR c.phone ILIKE $1 ESCAPE '\')
		ORDER BY c.last_name, c.first_name
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, oops.Code("CONTACT_QUERY_FAILED").With("operation", "search contacts").Wrap(err)
	}
	defer rows.Close()

	list := []contact.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CONTACT_ROWS_ERROR").With("operation", "iterate search results").Wrap(err)
	}
	return list, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type contactRow struct {
	id                                                                     string
	email, phone, phoneExt, mobile, jobTitle, department, notes, createdBy *string
}

func (cr *contactRow) dest(c *contact.Contact) []any {
	return []any{
		&cr.id, &c.FirstName, &c.LastName, &cr.email, &cr.phone, &cr.phoneExt, &cr.mobile,
		&cr.jobTitle, &cr.department, &cr.notes, &c.IsActive, &cr.createdBy, &c.CreatedAt, &c.UpdatedAt,
	}
}

func (cr *contactRow) fill(c *contact.Contact) error {
	id, err := ulid.Parse(cr.id)
	if err != nil {
		return oops.Code("CONTACT_INVALID_ID").With("id", cr.id).Wrap(err)
	}
	c.ID = id
	c.Email = store.Deref(cr.email)
	c.Phone = store.Deref(cr.phone)
	c.PhoneExt = store.Deref(cr.phoneExt)
	c.Mobile = store.Deref(cr.mobile)
	c.JobTitle = store.Deref(cr.jobTitle)
	c.Department = store.Deref(cr.department)
	c.Notes = store.Deref(cr.notes)
	c.CreatedBy = store.Deref(cr.createdBy)
	return nil
}

// scanContact scans a single row into a Contact.
// Callers are responsible for handling pgx.ErrNoRows.
func scanContact(row pgx.Row) (*contact.Contact, error) {
	var (
		cr contactRow
		c  contact.Contact
	)
	if err := row.Scan(cr.dest(&c)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("CONTACT_SCAN_FAILED").With("operation", "scan contact").Wrap(err)
	}
	if err := cr.fill(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// scanLinked scans a contact row followed by role, is_primary and the
// link's created_at.
func scanLinked(row pgx.Row) (*contact.Linked, error) {
	var (
		cr   contactRow
		l    contact.Linked
		role string
	)
	dest := append(cr.dest(&l.Contact), &role, &l.IsPrimary, &l.LinkedAt)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("CONTACT_SCAN_FAILED").With("operation", "scan linked contact").Wrap(err)
	}
	if err := cr.fill(&l.Contact); err != nil {
		return nil, err
	}
	l.Role = contact.Role(role)
	return &l, nil
}

var _ contact.Repository = (*Repository)(nil)
