// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package postgres implements business.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/store"
)

const businessColumns = `id, name, code, is_customer, is_supplier, address, city, state, postal_code, country,
	payment_terms, credit_limit::float8, lead_time_days, is_active, created_by, created_at, updated_at`

// Repository implements business.Repository using PostgreSQL.
type Repository struct {
	pool store.Pool
}

// NewRepository creates a new Repository.
func NewRepository(pool store.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a business.
func (r *Repository) Create(ctx context.Context, b *business.Business) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO businesses (id, name, code, is_customer, is_supplier, address, city, state, postal_code, country,
			payment_terms, credit_limit, lead_time_days, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		b.ID.String(),
		b.Name,
		b.Code,
		b.IsCustomer,
		b.IsSupplier,
		store.NullIfEmpty(b.Address),
		store.NullIfEmpty(b.City),
		store.NullIfEmpty(b.State),
		store.NullIfEmpty(b.PostalCode),
		store.NullIfEmpty(b.Country),
		store.NullIfEmpty(b.PaymentTerms),
		b.CreditLimit,
		b.LeadTimeDays,
		b.IsActive,
		store.NullIfEmpty(b.CreatedBy),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if store.IsUniqueViolation(err, "businesses_code_key") {
		return oops.Code("BUSINESS_CREATE_FAILED").With("code", b.Code).Wrap(business.ErrCodeExists)
	}
	if err != nil {
		return oops.Code("BUSINESS_CREATE_FAILED").
			With("operation", "insert business").
			With("code", b.Code).
			Wrap(err)
	}
	return nil
}

// Get retrieves a business by ID.
func (r *Repository) Get(ctx context.Context, id ulid.ULID) (*business.Business, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+businessColumns+`
		FROM businesses
		WHERE id = $1
	`, id.String())

	b, err := scanBusiness(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("BUSINESS_NOT_FOUND").With("id", id.String()).Wrap(business.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("BUSINESS_QUERY_FAILED").
			With("operation", "get business by id").
			With("id", id.String()).
			Wrap(err)
	}
	return b, nil
}

// ListSimple returns summaries ordered by name.
func (r *Repository) ListSimple(ctx context.Context, filter business.Filter) ([]business.Summary, error) {
	query := `SELECT id, name, code, is_customer, is_supplier, is_active FROM businesses`
	switch filter {
	case business.FilterCustomers:
		query += ` WHERE is_customer`
	case business.FilterSuppliers:
		query += ` WHERE is_supplier`
	}
	query += ` ORDER BY name, code`

	rows, err := store.Conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, oops.Code("BUSINESS_QUERY_FAILED").
			With("operation", "list businesses").
			With("filter", string(filter)).
			Wrap(err)
	}
	defer rows.Close()

	list := []business.Summary{}
	for rows.Next() {
		var (
			idStr string
			s     business.Summary
		)
		if err := rows.Scan(&idStr, &s.Name, &s.Code, &s.IsCustomer, &s.IsSupplier, &s.IsActive); err != nil {
			return nil, oops.Code("BUSINESS_SCAN_FAILED").With("operation", "scan business summary").Wrap(err)
		}
		if s.ID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("BUSINESS_INVALID_ID").With("id", idStr).Wrap(err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("BUSINESS_ROWS_ERROR").With("operation", "iterate business rows").Wrap(err)
	}
	return list, nil
}

// Stats computes directory counters in one round trip.
func (r *Repository) Stats(ctx context.Context) (business.Stats, error) {
	var st business.Stats
	err := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_customer),
			COUNT(*) FILTER (WHERE is_supplier),
			COUNT(*) FILTER (WHERE is_customer AND is_supplier),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE NOT is_active),
			(SELECT COUNT(*) FROM contacts WHERE is_active),
			(SELECT COUNT(*) FROM customer_emails WHERE is_active)
				+ (SELECT COUNT(*) FROM supplier_emails WHERE is_active)
		FROM businesses
	`).Scan(&st.Total, &st.Customers, &st.Suppliers, &st.Both, &st.Active, &st.Inactive, &st.Contacts, &st.Emails)
	if err != nil {
		return business.Stats{}, oops.Code("BUSINESS_QUERY_FAILED").With("operation", "business stats").Wrap(err)
	}
	return st, nil
}

// scanBusiness scans a single row into a Business.
// Callers are responsible for handling pgx.ErrNoRows.
func scanBusiness(row pgx.Row) (*business.Business, error) {
	var (
		idStr                                                   string
		address, city, state, postalCode, country, paymentTerms *string
		createdBy                                               *string
		b                                                       business.Business
	)
	err := row.Scan(&idStr, &b.Name, &b.Code, &b.IsCustomer, &b.IsSupplier,
		&address, &city, &state, &postalCode, &country, &paymentTerms,
		&b.CreditLimit, &b.LeadTimeDays, &b.IsActive, &createdBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("BUSINESS_SCAN_FAILED").With("operation", "scan business").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("BUSINESS_INVALID_ID").With("id", idStr).Wrap(err)
	}
	b.ID = id
	b.Address = store.Deref(address)
	b.City = store.Deref(city)
	b.State = store.Deref(state)
	b.PostalCode = store.Deref(postalCode)
	b.Country = store.Deref(country)
	b.PaymentTerms = store.Deref(paymentTerms)
	b.CreatedBy = store.Deref(createdBy)
	return &b, nil
}

var _ business.Repository = (*Repository)(nil)
