// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package email

import "errors"

// Sentinel errors. Returned errors wrap these with an oops code.
var (
	// ErrNotFound is returned when an email row does not exist.
	ErrNotFound = errors.New("email not found")

	// ErrDuplicate is returned when the business already has the address
	// as an active email.
	ErrDuplicate = errors.New("email address already exists for this business")
)
