// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package email_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contactdir/contactdir/internal/email"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"a@b.com", true},
		{"first.last+tag@sub.example.co.uk", true},
		{"not-an-email", false},
		{"", false},
		{"a@b", false},
		{"a@.com", false},
		{"a@b.com.", false},
		{"a@b..com", false},
		{"@b.com", false},
		{" a@b.com", false},
		{"Jane <jane@example.com>", false},
		{"<jane@example.com>", false},
		{"a b@example.com", false},
		{strings.Repeat("a", 250) + "@b.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, email.Validate(tt.in))
		})
	}
}
