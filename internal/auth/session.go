// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32 // 32 bytes = 64 hex chars

	// DefaultSessionLifetime is the idle time after which a session is
	// logged out.
	DefaultSessionLifetime = time.Hour
)

// Session is the per-browser state for one client. It is an explicit value
// owned by the request boundary; it lives in memory until a user logs in,
// after which it is persisted in web_sessions keyed by its token hash.
type Session struct {
	ID           ulid.ULID
	TokenHash    string
	UserID       *ulid.ULID
	Username     string
	FullName     string
	Role         Role
	LoginTime    *time.Time
	LastActivity time.Time
	UserAgent    string
	IPAddress    string
	CreatedAt    time.Time

	persisted bool
	rotate    bool
	destroyed bool
}

// NewSession creates an anonymous in-memory session.
func NewSession(userAgent, ipAddress string, now time.Time) *Session {
	return &Session{
		ID:           ulid.Make(),
		LastActivity: now,
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
		CreatedAt:    now,
	}
}

// Loaded marks a session read from storage. Repositories call this.
func (s *Session) Loaded() *Session {
	s.persisted = true
	return s
}

// Persisted reports whether the session has a stored row.
func (s *Session) Persisted() bool { return s.persisted }

// Destroyed reports whether the session was logged out or timed out during
// this request. The boundary must drop its stored row and cookie.
func (s *Session) Destroyed() bool { return s.destroyed }

// LoggedIn reports whether the session carries both a user id and a login time.
func (s *Session) LoggedIn() bool {
	return s.UserID != nil && s.LoginTime != nil
}

// Principal returns the logged-in user's projection.
func (s *Session) Principal() (Principal, bool) {
	if !s.LoggedIn() {
		return Principal{}, false
	}
	return Principal{ID: *s.UserID, Username: s.Username, FullName: s.FullName, Role: s.Role}, true
}

// IdleSince reports whether the session has been idle longer than lifetime at now.
func (s *Session) IdleSince(now time.Time, lifetime time.Duration) bool {
	return now.Sub(s.LastActivity) > lifetime
}

// Touch refreshes the last-activity time.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// signIn populates the session for user. A new token is issued on commit.
func (s *Session) signIn(user *User, now time.Time) {
	id := user.ID
	login := now
	s.UserID = &id
	s.Username = user.Username
	s.FullName = user.FullName
	s.Role = user.Role
	s.LoginTime = &login
	s.LastActivity = now
	s.rotate = true
	s.destroyed = false
}

// clear removes all user state and marks the session destroyed.
func (s *Session) clear() {
	s.UserID = nil
	s.Username = ""
	s.FullName = ""
	s.Role = ""
	s.LoginTime = nil
	s.rotate = false
	s.destroyed = true
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; the hash is stored in the database.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks if the plaintext token matches the stored hash
// in constant time.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashSessionToken(token)), []byte(hash)) == 1
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Touch updates last_activity for a stored session.
	Touch(ctx context.Context, id ulid.ULID, lastActivity time.Time) error

	// Delete removes a session by ID. Deleting a missing session is not an error.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteIdle removes sessions whose last activity is before cutoff and
	// returns the count.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)
}
