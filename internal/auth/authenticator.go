// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package auth

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/pkg/errutil"
)

// Authenticator performs auth operations against one request's Session.
// It is not safe for concurrent use; a session belongs to one request.
type Authenticator struct {
	svc  *Service
	sess *Session
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	User  Principal
	Audit audit.Result
}

// Session returns the bound session.
func (a *Authenticator) Session() *Session { return a.sess }

// Login verifies credentials and signs the session in. identifier may be a
// username or an email address. Every credential failure returns the same
// error so callers cannot tell unknown, inactive and wrong-password apart.
func (a *Authenticator) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		loginAttempts.WithLabelValues("invalid").Inc()
		return LoginResult{}, invalidCredentials()
	}

	user, err := a.svc.users.GetActiveByIdentifier(ctx, identifier)
	if err != nil && !errors.Is(err, ErrNotFound) {
		loginAttempts.WithLabelValues("error").Inc()
		return LoginResult{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "lookup user").
			Public("login failed").
			Wrap(err)
	}

	if user == nil {
		// Burn the same hashing cost for unknown users.
		_, _ = a.svc.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // timing only
		return LoginResult{Audit: a.loginFailed(ctx, identifier)}, invalidCredentials()
	}

	ok, err := a.svc.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		errutil.LogErrorContext(ctx, a.svc.logger, "stored password hash unreadable", oops.
			With("user_id", user.ID.String()).
			Wrap(err))
	}
	if !ok {
		return LoginResult{Audit: a.loginFailed(ctx, identifier)}, invalidCredentials()
	}

	now := a.svc.now()
	if err := a.svc.users.RecordLogin(ctx, user.ID, now); err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		return LoginResult{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "record login").
			With("user_id", user.ID.String()).
			Public("login failed").
			Wrap(err)
	}

	if a.svc.hasher.NeedsUpgrade(user.PasswordHash) {
		a.upgradeHash(ctx, user, password)
	}

	a.sess.signIn(user, now)
	loginAttempts.WithLabelValues("success").Inc()

	res := a.svc.audit.Record(ctx, audit.Entry{
		TableName: usersTable,
		RecordID:  user.ID.String(),
		Action:    audit.ActionLogin,
		UserID:    user.ID.String(),
		IPAddress: a.sess.IPAddress,
		UserAgent: a.sess.UserAgent,
	})
	return LoginResult{User: user.Principal(), Audit: res}, nil
}

func (a *Authenticator) loginFailed(ctx context.Context, identifier string) audit.Result {
	loginAttempts.WithLabelValues("failure").Inc()
	return a.svc.audit.Record(ctx, audit.Entry{
		TableName: usersTable,
		Action:    audit.ActionLoginFailed,
		NewValues: map[string]any{"identifier": identifier},
		IPAddress: a.sess.IPAddress,
		UserAgent: a.sess.UserAgent,
	})
}

func (a *Authenticator) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := a.svc.hasher.Hash(password)
	if err == nil {
		err = a.svc.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		errutil.LogErrorContext(ctx, a.svc.logger, "password hash upgrade failed", oops.
			With("user_id", user.ID.String()).
			Wrap(err))
		return
	}
	a.svc.logger.InfoContext(ctx, "upgraded password hash", "user_id", user.ID.String())
}

// Logout clears the session. Logging out an anonymous session does nothing.
func (a *Authenticator) Logout(ctx context.Context) audit.Result {
	if !a.sess.LoggedIn() {
		return audit.Result{}
	}
	return a.logout(ctx, "")
}

func (a *Authenticator) logout(ctx context.Context, reason string) audit.Result {
	userID := a.sess.UserID.String()
	entry := audit.Entry{
		TableName: usersTable,
		RecordID:  userID,
		Action:    audit.ActionLogout,
		UserID:    userID,
		IPAddress: a.sess.IPAddress,
		UserAgent: a.sess.UserAgent,
	}
	if reason != "" {
		entry.NewValues = map[string]any{"reason": reason}
	}
	a.sess.clear()
	return a.svc.audit.Record(ctx, entry)
}

// IsLoggedIn reports whether the session has a logged-in user.
func (a *Authenticator) IsLoggedIn() bool { return a.sess.LoggedIn() }

// CurrentUser returns the logged-in user, if any.
func (a *Authenticator) CurrentUser() (Principal, bool) { return a.sess.Principal() }

// HasRole reports whether the current user has one of roles. Admins have
// every role.
func (a *Authenticator) HasRole(roles ...Role) bool {
	p, ok := a.sess.Principal()
	if !ok {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	return slices.Contains(roles, p.Role)
}

// RequireAuth returns an error wrapping ErrNotAuthenticated when nobody is
// logged in.
func (a *Authenticator) RequireAuth() error {
	if a.sess.LoggedIn() {
		return nil
	}
	return oops.Code("AUTH_REQUIRED").
		Public(ErrNotAuthenticated.Error()).
		Wrap(ErrNotAuthenticated)
}

// RequireRole returns an error wrapping ErrNotAuthenticated or ErrForbidden
// unless the current user has one of roles. message is the user-facing
// text for a forbidden result.
func (a *Authenticator) RequireRole(message string, roles ...Role) error {
	if err := a.RequireAuth(); err != nil {
		return err
	}
	if a.HasRole(roles...) {
		return nil
	}
	if message == "" {
		message = ErrForbidden.Error()
	}
	return oops.Code("AUTH_FORBIDDEN").
		With("role", string(a.sess.Role)).
		With("required", roles).
		Public(message).
		Wrap(ErrForbidden)
}

// CreateUser creates an account. Only admins may create users.
func (a *Authenticator) CreateUser(ctx context.Context, in NewUserInput) (ulid.ULID, audit.Result, error) {
	if err := a.RequireRole("only admins can create users", RoleAdmin); err != nil {
		return ulid.ULID{}, audit.Result{}, err
	}
	return a.svc.createUser(ctx, in, a.sess.UserID.String())
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").
		Public(ErrInvalidCredentials.Error()).
		Wrap(ErrInvalidCredentials)
}
