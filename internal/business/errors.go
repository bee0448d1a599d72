// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package business

import "errors"

// Sentinel errors. Returned errors wrap these with an oops code.
var (
	// ErrNotFound is returned when a business does not exist.
	ErrNotFound = errors.New("business not found")

	// ErrCodeExists is returned when a business code is already taken.
	ErrCodeExists = errors.New("business code already exists")

	// ErrRelationMismatch is returned when a contact link or email targets
	// a side the business does not take part in.
	ErrRelationMismatch = errors.New("business does not take part in this relation")
)
