// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package contact

import (
	"context"
	"errors"
	"strings"
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

const contactsTable = "contacts"

// Service provides contact operations.
type Service struct {
	repo  Repository
	audit AuditRecorder
	now   func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository, recorder AuditRecorder) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("CONTACT_INVALID_SERVICE").Errorf("repository is required")
	}
	if recorder == nil {
		return nil, oops.Code("CONTACT_INVALID_SERVICE").Errorf("audit recorder is required")
	}
	return &Service{repo: repo, audit: recorder, now: time.Now}, nil
}

// CreateContact inserts a contact and returns its ID.
func (s *Service) CreateContact(ctx context.Context, in Input, createdBy string) (ulid.ULID, audit.Result, error) {
	if err := in.Validate(); err != nil {
		return ulid.ULID{}, audit.Result{}, err
	}

	now := s.now()
	c := &Contact{
		ID:         ulid.Make(),
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Email,
		Phone:      in.Phone,
		PhoneExt:   in.PhoneExt,
		Mobile:     in.Mobile,
		JobTitle:   in.JobTitle,
		Department: in.Department,
		Notes:      in.Notes,
		IsActive:   true,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return ulid.ULID{}, audit.Result{}, oops.Code("CONTACT_CREATE_FAILED").
			Public("could not create contact").
			Wrap(err)
	}

	res := s.audit.Record(ctx, audit.Entry{
		TableName: contactsTable,
		RecordID:  c.ID.String(),
		Action:    audit.ActionCreate,
		NewValues: in.values(),
		UserID:    createdBy,
	})
	return c.ID, res, nil
}

// UpdateContact overwrites every mutable field of contact id. A nil error
// means the update ran; it does not promise that a row changed.
func (s *Service) UpdateContact(ctx context.Context, id ulid.ULID, in Input) (audit.Result, error) {
	if err := in.Validate(); err != nil {
		return audit.Result{}, err
	}

	n, err := s.repo.Update(ctx, id, in, s.now())
	if err != nil {
		return audit.Result{}, oops.Code("CONTACT_UPDATE_FAILED").
			With("id", id.String()).
			Public("could not update contact").
			Wrap(err)
	}
	if n == 0 {
		return audit.Result{}, nil
	}

	return s.audit.Record(ctx, audit.Entry{
		TableName: contactsTable,
		RecordID:  id.String(),
		Action:    audit.ActionUpdate,
		NewValues: in.values(),
	}), nil
}

// GetContact returns contact id.
func (s *Service) GetContact(ctx context.Context, id ulid.ULID) (*Contact, error) {
	c, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Public("contact not found").Wrap(err)
	}
	if err != nil {
		return nil, oops.Code("CONTACT_GET_FAILED").Public("could not load contact").Wrap(err)
	}
	return c, nil
}

// Link links a contact to a business under rel. An empty role means
// RolePrimary. Setting primary clears any other primary of the business.
func (s *Service) Link(ctx context.Context, rel business.Relation, contactID, businessID ulid.ULID, role Role, primary bool) (audit.Result, error) {
	if err := checkRelation(rel); err != nil {
		return audit.Result{}, err
	}
	role = Role(strings.TrimSpace(string(role)))
	if role == "" {
		role = RolePrimary
	}
	if !ValidRole(rel, role) {
		return audit.Result{}, oops.Code("CONTACT_INVALID_ROLE").
			With("relation", string(rel)).
			With("role", string(role)).
			Public("invalid role for "+string(rel)+" contact").
			Errorf("role %q not allowed for %s", role, rel)
	}

	err := s.repo.Link(ctx, rel, Link{ContactID: contactID, BusinessID: businessID, Role: role, IsPrimary: primary})
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, business.ErrNotFound):
		return audit.Result{}, oops.Public("contact or business not found").Wrap(err)
	case errors.Is(err, business.ErrRelationMismatch):
		return audit.Result{}, oops.Public("business is not a " + string(rel)).Wrap(err)
	case errors.Is(err, ErrPrimaryConflict):
		return audit.Result{}, oops.Public("another primary contact was just set, try again").Wrap(err)
	case err != nil:
		return audit.Result{}, oops.Code("CONTACT_LINK_FAILED").
			With("relation", string(rel)).
			With("contact_id", contactID.String()).
			With("business_id", businessID.String()).
			Public("could not link contact").
			Wrap(err)
	}

	return s.audit.Record(ctx, audit.Entry{
		TableName: rel.Table("contacts"),
		RecordID:  contactID.String(),
		Action:    audit.ActionCreate,
		NewValues: map[string]any{
			"business_id": businessID.String(),
			"role":        string(role),
			"is_primary":  primary,
		},
	}), nil
}

// Unlink removes the link between a contact and a business. The contact
// itself is kept. Unlinking a missing link is not an error.
func (s *Service) Unlink(ctx context.Context, rel business.Relation, contactID, businessID ulid.ULID) (audit.Result, error) {
	if err := checkRelation(rel); err != nil {
		return audit.Result{}, err
	}
	removed, err := s.repo.Unlink(ctx, rel, contactID, businessID)
	if err != nil {
		return audit.Result{}, oops.Code("CONTACT_UNLINK_FAILED").
			With("relation", string(rel)).
			With("contact_id", contactID.String()).
			With("business_id", businessID.String()).
			Public("could not unlink contact").
			Wrap(err)
	}
	if !removed {
		return audit.Result{}, nil
	}

	return s.audit.Record(ctx, audit.Entry{
		TableName: rel.Table("contacts"),
		RecordID:  contactID.String(),
		Action:    audit.ActionDelete,
		OldValues: map[string]any{"business_id": businessID.String()},
	}), nil
}

// Contacts returns the active contacts linked to a business under rel.
func (s *Service) Contacts(ctx context.Context, rel business.Relation, businessID ulid.ULID) ([]Linked, error) {
	if err := checkRelation(rel); err != nil {
		return nil, err
	}
	list, err := s.repo.ListLinked(ctx, rel, businessID)
	if err != nil {
		return nil, oops.Code("CONTACT_LIST_FAILED").
			With("relation", string(rel)).
			With("business_id", businessID.String()).
			Public("could not list contacts").
			Wrap(err)
	}
	return list, nil
}

// PrimaryContact returns the active primary contact of a business under
// rel, or an error wrapping ErrNotFound.
func (s *Service) PrimaryContact(ctx context.Context, rel business.Relation, businessID ulid.ULID) (*Linked, error) {
	if err := checkRelation(rel); err != nil {
		return nil, err
	}
	l, err := s.repo.Primary(ctx, rel, businessID)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Public("no primary contact").Wrap(err)
	}
	if err != nil {
		return nil, oops.Code("CONTACT_PRIMARY_FAILED").
			With("relation", string(rel)).
			With("business_id", businessID.String()).
			Public("could not load primary contact").
			Wrap(err)
	}
	return l, nil
}

// SearchContacts finds up to SearchLimit active contacts whose full name,
// email or phone contains term, ignoring case. A blank term matches nothing.
func (s *Service) SearchContacts(ctx context.Context, term string) ([]Contact, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []Contact{}, nil
	}
	list, err := s.repo.Search(ctx, term, SearchLimit)
	if err != nil {
		return nil, oops.Code("CONTACT_SEARCH_FAILED").Public("could not search contacts").Wrap(err)
	}
	return list, nil
}

// LinkToCustomer links a contact to a customer.
func (s *Service) LinkToCustomer(ctx context.Context, contactID, businessID ulid.ULID, role Role, primary bool) (audit.Result, error) {
	return s.Link(ctx, business.RelationCustomer, contactID, businessID, role, primary)
}

// LinkToSupplier links a contact to a supplier.
func (s *Service) LinkToSupplier(ctx context.Context, contactID, businessID ulid.ULID, role Role, primary bool) (audit.Result, error) {
	return s.Link(ctx, business.RelationSupplier, contactID, businessID, role, primary)
}

// UnlinkFromCustomer removes a customer link.
func (s *Service) UnlinkFromCustomer(ctx context.Context, contactID, businessID ulid.ULID) (audit.Result, error) {
	return s.Unlink(ctx, business.RelationCustomer, contactID, businessID)
}

// UnlinkFromSupplier removes a supplier link.
func (s *Service) UnlinkFromSupplier(ctx context.Context, contactID, businessID ulid.ULID) (audit.Result, error) {
	return s.Unlink(ctx, business.RelationSupplier, contactID, businessID)
}

// CustomerContacts returns a customer's active contacts.
func (s *Service) CustomerContacts(ctx context.Context, businessID ulid.ULID) ([]Linked, error) {
	return s.Contacts(ctx, business.RelationCustomer, businessID)
}

// SupplierContacts returns a supplier's active contacts.
func (s *Service) SupplierContacts(ctx context.Context, businessID ulid.ULID) ([]Linked, error) {
	return s.Contacts(ctx, business.RelationSupplier, businessID)
}

// CustomerPrimaryContact returns a customer's primary contact.
func (s *Service) CustomerPrimaryContact(ctx context.Context, businessID ulid.ULID) (*Linked, error) {
	return s.PrimaryContact(ctx, business.RelationCustomer, businessID)
}

// SupplierPrimaryContact returns a supplier's primary contact.
func (s *Service) SupplierPrimaryContact(ctx context.Context, businessID ulid.ULID) (*Linked, error) {
	return s.PrimaryContact(ctx, business.RelationSupplier, businessID)
}

func checkRelation(rel business.Relation) error {
	if rel.Valid() {
		return nil
	}
	return oops.Code("CONTACT_INVALID_RELATION").
		With("relation", string(rel)).
		Public("relation must be customer or supplier").
		Errorf("unknown relation %q", rel)
}
