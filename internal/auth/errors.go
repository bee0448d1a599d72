// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package auth

import "errors"

// Sentinel errors. Returned errors wrap these with an oops code, so match
// them with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is the single failure for unknown user, inactive
	// user and wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrNotAuthenticated is returned by RequireAuth when nobody is logged in.
	ErrNotAuthenticated = errors.New("authentication required")

	// ErrForbidden is returned by RequireRole when the role check fails.
	ErrForbidden = errors.New("insufficient permissions")

	// ErrUserExists is returned when the username or email is taken.
	ErrUserExists = errors.New("username or email already exists")
)
