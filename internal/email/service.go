// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package email

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/business"
)

// AuditRecorder records audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) audit.Result
}

// Service provides email operations.
type Service struct {
	repo  Repository
	audit AuditRecorder
	now   func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository, recorder AuditRecorder) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("EMAIL_INVALID_SERVICE").Errorf("repository is required")
	}
	if recorder == nil {
		return nil, oops.Code("EMAIL_INVALID_SERVICE").Errorf("audit recorder is required")
	}
	return &Service{repo: repo, audit: recorder, now: time.Now}, nil
}

// Add validates in and stores it for rel. The insert itself rejects an
// address the business already has as an active email, so no prior
// Exists call is needed.
func (s *Service) Add(ctx context.Context, rel business.Relation, in AddInput, createdBy string) (ulid.ULID, audit.Result, error) {
	if err := checkRelation(rel); err != nil {
		return ulid.ULID{}, audit.Result{}, err
	}
	if err := in.Validate(rel); err != nil {
		return ulid.ULID{}, audit.Result{}, err
	}

	e := &Email{
		ID:          ulid.Make(),
		BusinessID:  in.BusinessID,
		Address:     in.Address,
		Type:        in.Type,
		Description: in.Description,
		IsActive:    true,
		CreatedBy:   createdBy,
		CreatedAt:   s.now(),
	}
	inserted, err := s.repo.Add(ctx, rel, e)
	switch {
	case errors.Is(err, business.ErrNotFound):
		return ulid.ULID{}, audit.Result{}, oops.Public("business not found").Wrap(err)
	case errors.Is(err, business.ErrRelationMismatch):
		return ulid.ULID{}, audit.Result{}, oops.Public("business is not a " + string(rel)).Wrap(err)
	case err != nil:
		return ulid.ULID{}, audit.Result{}, oops.Code("EMAIL_ADD_FAILED").
			With("relation", string(rel)).
			With("business_id", in.BusinessID.String()).
			Public("could not add email").
			Wrap(err)
	}
	if !inserted {
		return ulid.ULID{}, audit.Result{}, oops.Code("EMAIL_DUPLICATE").
			With("relation", string(rel)).
			With("business_id", in.BusinessID.String()).
			With("email", in.Address).
			Public(ErrDuplicate.Error()).
			Wrap(ErrDuplicate)
	}

	res := s.audit.Record(ctx, audit.Entry{
		TableName: rel.Table("emails"),
		RecordID:  e.ID.String(),
		Action:    audit.ActionCreate,
		NewValues: map[string]any{
			"business_id": e.BusinessID.String(),
			"email":       e.Address,
			"email_type":  string(e.Type),
		},
		UserID: createdBy,
	})
	return e.ID, res, nil
}

// Get returns one email, active or not.
func (s *Service) Get(ctx context.Context, rel business.Relation, id ulid.ULID) (*Email, error) {
	if err := checkRelation(rel); err != nil {
		return nil, err
	}
	e, err := s.repo.Get(ctx, rel, id)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Public("email not found").Wrap(err)
	}
	if err != nil {
		return nil, oops.Code("EMAIL_GET_FAILED").Public("could not load email").Wrap(err)
	}
	return e, nil
}

// List returns the active emails of a business, ordered by type then
// address. A non-empty t restricts the result to that type.
func (s *Service) List(ctx context.Context, rel business.Relation, businessID ulid.ULID, t Type) ([]Email, error) {
	if err := checkRelation(rel); err != nil {
		return nil, err
	}
	if t != "" && !ValidType(rel, t) {
		return nil, oops.Code("EMAIL_INVALID_TYPE").
			With("relation", string(rel)).
			With("email_type", string(t)).
			Public("invalid email type for "+string(rel)).
			Errorf("email type %q not allowed for %s", t, rel)
	}
	emails, err := s.repo.ListActive(ctx, rel, businessID, t)
	if err != nil {
		return nil, oops.Code("EMAIL_LIST_FAILED").
			With("relation", string(rel)).
			With("business_id", businessID.String()).
			Public("could not list emails").
			Wrap(err)
	}
	return emails, nil
}

// EmailList returns the active emails of a business projected by format.
func (s *Service) EmailList(ctx context.Context, rel business.Relation, businessID ulid.ULID, format Format) (any, error) {
	emails, err := s.List(ctx, rel, businessID, "")
	if err != nil {
		return nil, err
	}
	return Project(emails, format), nil
}

// Remove soft-deletes an email. The row stays readable through Get.
func (s *Service) Remove(ctx context.Context, rel business.Relation, id ulid.ULID) (audit.Result, error) {
	if err := checkRelation(rel); err != nil {
		return audit.Result{}, err
	}
	err := s.repo.Deactivate(ctx, rel, id)
	if errors.Is(err, ErrNotFound) {
		return audit.Result{}, oops.Public("email not found").Wrap(err)
	}
	if err != nil {
		return audit.Result{}, oops.Code("EMAIL_REMOVE_FAILED").
			With("relation", string(rel)).
			With("id", id.String()).
			Public("could not remove email").
			Wrap(err)
	}

	return s.audit.Record(ctx, audit.Entry{
		TableName: rel.Table("emails"),
		RecordID:  id.String(),
		Action:    audit.ActionDelete,
		OldValues: map[string]any{"is_active": true},
		NewValues: map[string]any{"is_active": false},
	}), nil
}

// Exists reports whether the business has address as an active email.
func (s *Service) Exists(ctx context.Context, rel business.Relation, businessID ulid.ULID, address string) (bool, error) {
	if err := checkRelation(rel); err != nil {
		return false, err
	}
	ok, err := s.repo.Exists(ctx, rel, businessID, address)
	if err != nil {
		return false, oops.Code("EMAIL_EXISTS_FAILED").
			With("relation", string(rel)).
			With("business_id", businessID.String()).
			Public("could not check email").
			Wrap(err)
	}
	return ok, nil
}

// AddCustomerEmail adds an email to a customer.
func (s *Service) AddCustomerEmail(ctx context.Context, in AddInput, createdBy string) (ulid.ULID, audit.Result, error) {
	return s.Add(ctx, business.RelationCustomer, in, createdBy)
}

// AddSupplierEmail adds an email to a supplier.
func (s *Service) AddSupplierEmail(ctx context.Context, in AddInput, createdBy string) (ulid.ULID, audit.Result, error) {
	return s.Add(ctx, business.RelationSupplier, in, createdBy)
}

// CustomerEmails returns a customer's active emails.
func (s *Service) CustomerEmails(ctx context.Context, businessID ulid.ULID) ([]Email, error) {
	return s.List(ctx, business.RelationCustomer, businessID, "")
}

// SupplierEmails returns a supplier's active emails.
func (s *Service) SupplierEmails(ctx context.Context, businessID ulid.ULID) ([]Email, error) {
	return s.List(ctx, business.RelationSupplier, businessID, "")
}

// CustomerEmailsByType returns a customer's active emails of type t.
func (s *Service) CustomerEmailsByType(ctx context.Context, businessID ulid.ULID, t Type) ([]Email, error) {
	return s.List(ctx, business.RelationCustomer, businessID, t)
}

// SupplierEmailsByType returns a supplier's active emails of type t.
func (s *Service) SupplierEmailsByType(ctx context.Context, businessID ulid.ULID, t Type) ([]Email, error) {
	return s.List(ctx, business.RelationSupplier, businessID, t)
}

// RemoveCustomerEmail soft-deletes a customer email.
func (s *Service) RemoveCustomerEmail(ctx context.Context, id ulid.ULID) (audit.Result, error) {
	return s.Remove(ctx, business.RelationCustomer, id)
}

// RemoveSupplierEmail soft-deletes a supplier email.
func (s *Service) RemoveSupplierEmail(ctx context.Context, id ulid.ULID) (audit.Result, error) {
	return s.Remove(ctx, business.RelationSupplier, id)
}

// CustomerEmailExists reports whether a customer has address as an active email.
func (s *Service) CustomerEmailExists(ctx context.Context, businessID ulid.ULID, address string) (bool, error) {
	return s.Exists(ctx, business.RelationCustomer, businessID, address)
}

// SupplierEmailExists reports whether a supplier has address as an active email.
func (s *Service) SupplierEmailExists(ctx context.Context, businessID ulid.ULID, address string) (bool, error) {
	return s.Exists(ctx, business.RelationSupplier, businessID, address)
}

// CustomerEmailList returns a customer's active emails projected by format.
func (s *Service) CustomerEmailList(ctx context.Context, businessID ulid.ULID, format Format) (any, error) {
	return s.EmailList(ctx, business.RelationCustomer, businessID, format)
}

// SupplierEmailList returns a supplier's active emails projected by format.
func (s *Service) SupplierEmailList(ctx context.Context, businessID ulid.ULID, format Format) (any, error) {
	return s.EmailList(ctx, business.RelationSupplier, businessID, format)
}

func checkRelation(rel business.Relation) error {
	if rel.Valid() {
		return nil
	}
	return oops.Code("EMAIL_INVALID_RELATION").
		With("relation", string(rel)).
		Public("relation must be customer or supplier").
		Errorf("unknown relation %q", rel)
}
