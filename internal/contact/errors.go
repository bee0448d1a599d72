// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package contact

import "errors"

// Sentinel errors. Returned errors wrap these with an oops code.
var (
	// ErrNotFound is returned when a contact, or a primary contact, does not exist.
	ErrNotFound = errors.New("contact not found")

	// ErrPrimaryConflict is returned when a concurrent link made another
	// contact the primary first.
	ErrPrimaryConflict = errors.New("another primary contact was set concurrently")
)
