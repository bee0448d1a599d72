// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/auth"
	"github.com/contactdir/contactdir/internal/store"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool store.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool store.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	var userID *string
	if session.UserID != nil {
		s := session.UserID.String()
		userID = &s
	}

	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO web_sessions (id, token_hash, user_id, username, full_name, role, login_time, last_activity, user_agent, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		session.ID.String(),
		session.TokenHash,
		userID,
		session.Username,
		session.FullName,
		string(session.Role),
		session.LoginTime,
		session.LastActivity,
		session.UserAgent,
		session.IPAddress,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert web_session").
			With("id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, token_hash, user_id, username, full_name, role, login_time, last_activity, user_agent, ip_address, created_at
		FROM web_sessions
		WHERE token_hash = $1
	`, tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

// Touch updates last_activity for a stored session.
func (r *SessionRepository) Touch(ctx context.Context, id ulid.ULID, lastActivity time.Time) error {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE web_sessions SET last_activity = $2
		WHERE id = $1
	`, id.String(), lastActivity)
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").
			With("operation", "update last_activity").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM web_sessions WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete web_session").
			With("id", id.String()).
			Wrap(err)
	}
	// Note: No ErrNotFound if no rows deleted - a swept session is already gone
	return nil
}

// DeleteIdle removes sessions idle since before cutoff and returns the count.
func (r *SessionRepository) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM web_sessions WHERE last_activity < $1
	`, cutoff)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_IDLE_FAILED").
			With("operation", "delete idle web_sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr     string
		userIDStr *string
		role      string
		session   auth.Session
	)

	err := row.Scan(&idStr, &session.TokenHash, &userIDStr, &session.Username, &session.FullName, &role,
		&session.LoginTime, &session.LastActivity, &session.UserAgent, &session.IPAddress, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan web_session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	session.ID = id
	session.Role = auth.Role(role)

	if userIDStr != nil {
		userID, err := ulid.Parse(*userIDStr)
		if err != nil {
			return nil, oops.Code("SESSION_INVALID_USER_ID").With("user_id", *userIDStr).Wrap(err)
		}
		session.UserID = &userID
	}

	return session.Loaded(), nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
