// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package auth

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/email"
)

// Role is a user's position in the fixed role hierarchy.
type Role string

// Roles.
const (
	RoleAdmin            Role = "admin"
	RoleSupervisor       Role = "supervisor"
	RoleMaterialHandler  Role = "material_handler"
	RoleQualityInspector Role = "quality_inspector"
	RoleViewer           Role = "viewer"
)

// Roles lists every valid role, most privileged first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleSupervisor, RoleMaterialHandler, RoleQualityInspector, RoleViewer}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(Roles(), r)
}

// ParseRole converts s to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Public("invalid role").Errorf("unknown role %q", s)
	}
	return r, nil
}

// Username and password constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 8
)

// usernameRegex matches usernames that start with a letter and contain only
// letters, digits, dots, dashes and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

// User is a directory user account.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the session-derived projection of a logged-in user.
type Principal struct {
	ID       ulid.ULID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	Role     Role      `json:"role"`
}

// Principal returns the user's minimal projection.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role}
}

// NewUserInput carries the fields for creating a user.
type NewUserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// Validate checks the input and normalises whitespace and case.
func (in *NewUserInput) Validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	if err := ValidateUsername(in.Username); err != nil {
		return err
	}
	if !email.Validate(in.Email) {
		return oops.Code("AUTH_INVALID_EMAIL").With("email", in.Email).Public("invalid email address").Errorf("invalid email address")
	}
	if len(in.Password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Public("password is too short").
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if in.FullName == "" {
		return oops.Code("AUTH_INVALID_FULL_NAME").Public("full name is required").Errorf("full name cannot be empty")
	}
	if in.Role == "" {
		in.Role = RoleViewer
	}
	if !in.Role.Valid() {
		return oops.Code("AUTH_INVALID_ROLE").With("role", string(in.Role)).Public("invalid role").Errorf("unknown role %q", in.Role)
	}
	return nil
}

// ValidateUsername validates a username against length and character rules.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			With("max", MaxUsernameLength).
			Public("username has an invalid length").
			Errorf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Public("username contains invalid characters").
			Errorf("username must start with a letter and contain only letters, digits, '.', '-' and '_'")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. A username or email collision returns an
	// error wrapping ErrUserExists.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetActiveByIdentifier retrieves an active user whose username or email
	// matches identifier case-insensitively.
	GetActiveByIdentifier(ctx context.Context, identifier string) (*User, error)

	// Exists reports whether username or email is already taken.
	Exists(ctx context.Context, username, email string) (bool, error)

	// RecordLogin sets last_login.
	RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
