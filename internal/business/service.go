// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package business

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/audit"
)

// AuditRecorder records audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) audit.Result
}

const businessesTable = "businesses"

// Service provides business operations.
type Service struct {
	repo  Repository
	audit AuditRecorder
	now   func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository, recorder AuditRecorder) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("BUSINESS_INVALID_SERVICE").Errorf("repository is required")
	}
	if recorder == nil {
		return nil, oops.Code("BUSINESS_INVALID_SERVICE").Errorf("audit recorder is required")
	}
	return &Service{repo: repo, audit: recorder, now: time.Now}, nil
}

// Create validates in and inserts a new business.
func (s *Service) Create(ctx context.Context, in Input, createdBy string) (ulid.ULID, audit.Result, error) {
	if err := in.Validate(); err != nil {
		return ulid.ULID{}, audit.Result{}, err
	}

	now := s.now()
	b := &Business{
		ID:           ulid.Make(),
		Name:         in.Name,
		Code:         in.Code,
		IsCustomer:   in.IsCustomer,
		IsSupplier:   in.IsSupplier,
		Address:      in.Address,
		City:         in.City,
		State:        in.State,
		PostalCode:   in.PostalCode,
		Country:      in.Country,
		PaymentTerms: in.PaymentTerms,
		CreditLimit:  in.CreditLimit,
		LeadTimeDays: in.LeadTimeDays,
		IsActive:     true,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		if errors.Is(err, ErrCodeExists) {
			return ulid.ULID{}, audit.Result{}, oops.Code("BUSINESS_CODE_EXISTS").
				With("code", b.Code).
				Public("a business with this code already exists").
				Wrap(ErrCodeExists)
		}
		return ulid.ULID{}, audit.Result{}, oops.Code("BUSINESS_CREATE_FAILED").
			With("code", b.Code).
			Public("could not create business").
			Wrap(err)
	}

	res := s.audit.Record(ctx, audit.Entry{
		TableName: businessesTable,
		RecordID:  b.ID.String(),
		Action:    audit.ActionCreate,
		NewValues: map[string]any{
			"name":        b.Name,
			"code":        b.Code,
			"is_customer": b.IsCustomer,
			"is_supplier": b.IsSupplier,
		},
		UserID: createdBy,
	})
	return b.ID, res, nil
}

// Get returns the business with id.
func (s *Service) Get(ctx context.Context, id ulid.ULID) (*Business, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, publicLookupError(err, "could not load business")
	}
	return b, nil
}

// ListSimple returns business summaries matching filter.
func (s *Service) ListSimple(ctx context.Context, filter Filter) ([]Summary, error) {
	list, err := s.repo.ListSimple(ctx, filter)
	if err != nil {
		return nil, oops.Code("BUSINESS_LIST_FAILED").
			With("filter", string(filter)).
			Public("could not list businesses").
			Wrap(err)
	}
	return list, nil
}

// Stats returns directory counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return Stats{}, oops.Code("BUSINESS_STATS_FAILED").
			Public("could not load business statistics").
			Wrap(err)
	}
	return st, nil
}

// publicLookupError keeps not-found errors as they are and hides storage
// failures behind msg.
func publicLookupError(err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Public("business not found").Wrap(err)
	}
	return oops.Code("BUSINESS_GET_FAILED").Public(msg).Wrap(err)
}
