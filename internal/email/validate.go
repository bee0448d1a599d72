// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package email

import (
	"net/mail"
	"strings"
)

// MaxAddressLength is the longest address Validate accepts.
const MaxAddressLength = 254

// Validate reports whether s is a syntactically valid bare address such as
// "a@b.com". Display names, comments and dotless domains are rejected. No
// deliverability check is made.
func Validate(s string) bool {
	if s == "" || len(s) > MaxAddressLength || strings.TrimSpace(s) != s {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	if at <= 0 {
		return false
	}
	domain := s[at+1:]
	return strings.Contains(domain, ".") &&
		!strings.HasPrefix(domain, ".") &&
		!strings.HasSuffix(domain, ".") &&
		!strings.Contains(domain, "..")
}
