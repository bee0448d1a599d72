// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package api_test

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/contact"
	"github.com/contactdir/contactdir/internal/directory"
	"github.com/contactdir/contactdir/internal/email"
)

type mockBusinesses struct{ mock.Mock }

func (m *mockBusinesses) ListSimple(ctx context.Context, filter business.Filter) ([]business.Summary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]business.Summary), args.Error(1)
}

func (m *mockBusinesses) Stats(ctx context.Context) (business.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(business.Stats), args.Error(1)
}

type mockDirectory struct{ mock.Mock }

func (m *mockDirectory) CreateBusiness(ctx context.Context, in directory.CreateInput, createdBy string) (directory.Created, audit.Result, error) {
	args := m.Called(ctx, in, createdBy)
	return args.Get(0).(directory.Created), audit.Result{}, args.Error(1)
}

func (m *mockDirectory) Detail(ctx context.Context, id ulid.ULID) (*directory.Detail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*directory.Detail), args.Error(1)
}

type mockContacts struct{ mock.Mock }

func (m *mockContacts) CreateContact(ctx context.Context, in contact.Input, createdBy string) (ulid.ULID, audit.Result, error) {
	args := m.Called(ctx, in, createdBy)
	return args.Get(0).(ulid.ULID), audit.Result{}, args.Error(1)
}

func (m *mockContacts) UpdateContact(ctx context.Context, id ulid.ULID, in contact.Input) (audit.Result, error) {
	args := m.Called(ctx, id, in)
	return audit.Result{}, args.Error(0)
}

func (m *mockContacts) GetContact(ctx context.Context, id ulid.ULID) (*contact.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contact.Contact), args.Error(1)
}

func (m *mockContacts) Link(ctx context.Context, rel business.Relation, contactID, businessID ulid.ULID, role contact.Role, primary bool) (audit.Result, error) {
	args := m.Called(ctx, rel, contactID, businessID, role, primary)
	return audit.Result{}, args.Error(0)
}

func (m *mockContacts) Unlink(ctx context.Context, rel business.Relation, contactID, businessID ulid.ULID) (audit.Result, error) {
	args := m.Called(ctx, rel, contactID, businessID)
	return audit.Result{}, args.Error(0)
}

func (m *mockContacts) Contacts(ctx context.Context, rel business.Relation, businessID ulid.ULID) ([]contact.Linked, error) {
	args := m.Called(ctx, rel, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]contact.Linked), args.Error(1)
}

func (m *mockContacts) PrimaryContact(ctx context.Context, rel business.Relation, businessID ulid.ULID) (*contact.Linked, error) {
	args := m.Called(ctx, rel, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contact.Linked), args.Error(1)
}

func (m *mockContacts) SearchContacts(ctx context.Context, term string) ([]contact.Contact, error) {
	args := m.Called(ctx, term)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]contact.Contact), args.Error(1)
}

type mockEmails struct{ mock.Mock }

func (m *mockEmails) Add(ctx context.Context, rel business.Relation, in email.AddInput, createdBy string) (ulid.ULID, audit.Result, error) {
	args := m.Called(ctx, rel, in, createdBy)
	return args.Get(0).(ulid.ULID), audit.Result{}, args.Error(1)
}

func (m *mockEmails) List(ctx context.Context, rel business.Relation, businessID ulid.ULID, t email.Type) ([]email.Email, error) {
	args := m.Called(ctx, rel, businessID, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]email.Email), args.Error(1)
}

func (m *mockEmails) Remove(ctx context.Context, rel business.Relation, id ulid.ULID) (audit.Result, error) {
	args := m.Called(ctx, rel, id)
	return audit.Result{}, args.Error(0)
}

func (m *mockEmails) Exists(ctx context.Context, rel business.Relation, businessID ulid.ULID, address string) (bool, error) {
	args := m.Called(ctx, rel, businessID, address)
	return args.Bool(0), args.Error(1)
}

// memWriter keeps audit entries in memory.
type memWriter struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (w *memWriter) Write(_ context.Context, entry audit.Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)
	return nil
}

func (w *memWriter) actions() []audit.Action {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]audit.Action, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, e.Action)
	}
	return out
}
