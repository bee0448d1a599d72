// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package authtest provides in-memory auth repositories for tests.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/auth"
)

// Users is an in-memory auth.UserRepository.
type Users struct {
	mu    sync.Mutex
	users map[ulid.ULID]*auth.User
}

// NewUsers creates an empty Users.
func NewUsers() *Users {
	return &Users{users: make(map[ulid.ULID]*auth.User)}
}

// Add stores a user with hasher-produced hash and returns it.
func (r *Users) Add(hasher auth.PasswordHasher, username, password string, role auth.Role) *auth.User {
	hash, err := hasher.Hash(password)
	if err != nil {
		panic(err)
	}
	now := time.Now()
	u := &auth.User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	return u
}

// Create implements auth.UserRepository.
func (r *Users) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return oops.Code("USER_CREATE_FAILED").Wrap(auth.ErrUserExists)
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

// GetByID implements auth.UserRepository.
func (r *Users) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

// GetActiveByIdentifier implements auth.UserRepository.
func (r *Users) GetActiveByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.IsActive && (strings.EqualFold(u.Username, identifier) || strings.EqualFold(u.Email, identifier)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Exists implements auth.UserRepository.
func (r *Users) Exists(_ context.Context, username, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

// RecordLogin implements auth.UserRepository.
func (r *Users) RecordLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	u.LastLogin = &at
	return nil
}

// UpdatePassword implements auth.UserRepository.
func (r *Users) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	return nil
}

// Sessions is an in-memory auth.SessionRepository.
type Sessions struct {
	mu       sync.Mutex
	sessions map[ulid.ULID]auth.Session
}

// NewSessions creates an empty Sessions.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[ulid.ULID]auth.Session)}
}

// Len returns the number of stored sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Create implements auth.SessionRepository.
func (r *Sessions) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

// GetByTokenHash implements auth.SessionRepository.
func (r *Sessions) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			cp := s
			return cp.Loaded(), nil
		}
	}
	return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Touch implements auth.SessionRepository.
func (r *Sessions) Touch(_ context.Context, id ulid.ULID, lastActivity time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	s.LastActivity = lastActivity
	r.sessions[id] = s
	return nil
}

// Delete implements auth.SessionRepository.
func (r *Sessions) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// DeleteIdle implements auth.SessionRepository.
func (r *Sessions) DeleteIdle(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// FastHasher is a PasswordHasher with no work factor.
type FastHasher struct{}

// Hash implements auth.PasswordHasher.
func (FastHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "fast$" + password, nil
}

// Verify implements auth.PasswordHasher.
func (FastHasher) Verify(password, hash string) (bool, error) {
	return hash == "fast$"+password, nil
}

// NeedsUpgrade implements auth.PasswordHasher.
func (FastHasher) NeedsUpgrade(string) bool { return false }

var (
	_ auth.UserRepository    = (*Users)(nil)
	_ auth.SessionRepository = (*Sessions)(nil)
	_ auth.PasswordHasher    = FastHasher{}
)
