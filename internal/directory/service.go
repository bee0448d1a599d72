// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package directory

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/contact"
	"github.com/contactdir/contactdir/internal/email"
	"github.com/contactdir/contactdir/pkg/errutil"
)

// ServiceConfig holds dependencies for Service.
type ServiceConfig struct {
	Businesses BusinessService
	Contacts   ContactService
	Emails     EmailService
	Transactor Transactor
	Audit      AuditFlusher
	Logger     *slog.Logger
}

// Service runs operations spanning several directory packages.
type Service struct {
	businesses BusinessService
	contacts   ContactService
	emails     EmailService
	tx         Transactor
	audit      AuditFlusher
	logger     *slog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Businesses == nil:
		return nil, oops.Code("DIRECTORY_INVALID_SERVICE").Errorf("business service is required")
	case cfg.Contacts == nil:
		return nil, oops.Code("DIRECTORY_INVALID_SERVICE").Errorf("contact service is required")
	case cfg.Emails == nil:
		return nil, oops.Code("DIRECTORY_INVALID_SERVICE").Errorf("email service is required")
	case cfg.Transactor == nil:
		return nil, oops.Code("DIRECTORY_INVALID_SERVICE").Errorf("transactor is required")
	case cfg.Audit == nil:
		return nil, oops.Code("DIRECTORY_INVALID_SERVICE").Errorf("audit flusher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		businesses: cfg.Businesses,
		contacts:   cfg.Contacts,
		emails:     cfg.Emails,
		tx:         cfg.Transactor,
		audit:      cfg.Audit,
		logger:     logger,
	}, nil
}

// CreateBusiness creates a business, its optional primary contact and its
// emails in one transaction. Any failure leaves nothing behind, audit rows
// included: entries are held until the commit and written afterwards.
func (s *Service) CreateBusiness(ctx context.Context, in CreateInput, createdBy string) (Created, audit.Result, error) {
	if err := in.Validate(); err != nil {
		return Created{}, audit.Result{}, err
	}
	rels := relations(in.Business)

	txCtx, buf := audit.WithBuffer(ctx)
	var created Created
	err := s.tx.InTransaction(txCtx, func(ctx context.Context) error {
		id, _, err := s.businesses.Create(ctx, in.Business, createdBy)
		if err != nil {
			return err
		}
		created.BusinessID = id

		if in.Contact != nil {
			contactID, _, err := s.contacts.CreateContact(ctx, in.Contact.Input, createdBy)
			if err != nil {
				return err
			}
			created.ContactID = &contactID
			for _, rel := range rels {
				if _, err := s.contacts.Link(ctx, rel, contactID, id, in.Contact.roleFor(rel), true); err != nil {
					return err
				}
			}
		}

		for _, e := range in.Emails {
			emailID, _, err := s.emails.Add(ctx, e.Relation, email.AddInput{
				BusinessID:  id,
				Address:     e.Address,
				Type:        e.Type,
				Description: e.Description,
			}, createdBy)
			if err != nil {
				return err
			}
			created.EmailIDs = append(created.EmailIDs, emailID)
		}
		return nil
	})
	if err != nil {
		buf.Discard()
		return Created{}, audit.Result{}, err
	}

	res := s.audit.Flush(ctx, buf)
	if !res.OK() {
		errutil.LogErrorContext(ctx, s.logger, "create business audit degraded", res.Err)
	}
	return created, res, nil
}

// Detail returns business id with its contacts and grouped active emails.
func (s *Service) Detail(ctx context.Context, id ulid.ULID) (*Detail, error) {
	b, err := s.businesses.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &Detail{
		Business:         b,
		CustomerContacts: []contact.Linked{},
		SupplierContacts: []contact.Linked{},
		CustomerEmails:   map[email.Type][]string{},
		SupplierEmails:   map[email.Type][]string{},
	}
	if b.IsCustomer {
		if d.CustomerContacts, d.CustomerEmails, err = s.side(ctx, business.RelationCustomer, id); err != nil {
			return nil, err
		}
	}
	if b.IsSupplier {
		if d.SupplierContacts, d.SupplierEmails, err = s.side(ctx, business.RelationSupplier, id); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (s *Service) side(ctx context.Context, rel business.Relation, id ulid.ULID) ([]contact.Linked, map[email.Type][]string, error) {
	linked, err := s.contacts.Contacts(ctx, rel, id)
	if err != nil {
		return nil, nil, err
	}
	emails, err := s.emails.List(ctx, rel, id, "")
	if err != nil {
		return nil, nil, err
	}
	return linked, email.Group(emails), nil
}

func relations(in business.Input) []business.Relation {
	var rels []business.Relation
	if in.IsCustomer {
		rels = append(rels, business.RelationCustomer)
	}
	if in.IsSupplier {
		rels = append(rels, business.RelationSupplier)
	}
	return rels
}
