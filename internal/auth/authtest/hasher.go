// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package authtest

// PlainHasher is a fast auth.PasswordHasher for tests. It stores passwords
// with a "plain:" prefix.
type PlainHasher struct{}

// Hash implements auth.PasswordHasher.
func (PlainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

// Verify implements auth.PasswordHasher.
func (PlainHasher) Verify(password, hash string) (bool, error) { return hash == "plain:"+password, nil }

// NeedsUpgrade implements auth.PasswordHasher.
func (PlainHasher) NeedsUpgrade(string) bool { return false }
