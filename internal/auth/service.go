// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/pkg/errutil"
)

// AuditRecorder records audit entries. *audit.Recorder satisfies it.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) audit.Result
}

// usersTable is the audit table name for user events.
const usersTable = "users"

// dummyPasswordHash is verified when a user doesn't exist so unknown users
// cost the same as wrong passwords. It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// loginAttempts counts login attempts by outcome.
var loginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "contactdir_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	},
	[]string{"outcome"},
)

// RegisterMetrics registers auth metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(loginAttempts)
}

// Service provides authentication operations. Per-request work goes through
// the Authenticator returned by ForSession.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	audit    AuditRecorder
	lifetime time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHasher replaces the default argon2id hasher.
func WithHasher(h PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

// WithSessionLifetime sets the idle timeout.
func WithSessionLifetime(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service.
func NewService(users UserRepository, sessions SessionRepository, recorder AuditRecorder, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("sessions repository is required")
	}
	if recorder == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("audit recorder is required")
	}

	s := &Service{
		users:    users,
		sessions: sessions,
		hasher:   NewArgon2idHasher(),
		audit:    recorder,
		lifetime: DefaultSessionLifetime,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lifetime returns the configured idle timeout.
func (s *Service) Lifetime() time.Duration { return s.lifetime }

// LoadSession returns the stored session for token, or a new anonymous
// session when token is empty or unknown.
func (s *Service) LoadSession(ctx context.Context, token, userAgent, ipAddress string) (*Session, error) {
	if token == "" {
		return NewSession(userAgent, ipAddress, s.now()), nil
	}

	sess, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if errors.Is(err, ErrNotFound) {
		return NewSession(userAgent, ipAddress, s.now()), nil
	}
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_LOAD_FAILED").
			With("operation", "get session by token hash").
			Public("session unavailable").
			Wrap(err)
	}
	return sess, nil
}

// ForSession binds sess to a per-request Authenticator and applies the idle
// timeout: an expired login is logged out (with a LOGOUT audit entry),
// otherwise the last-activity time is refreshed.
func (s *Service) ForSession(ctx context.Context, sess *Session) (*Authenticator, audit.Result) {
	a := &Authenticator{svc: s, sess: sess}
	now := s.now()

	if sess.LoggedIn() && sess.IdleSince(now, s.lifetime) {
		s.logger.InfoContext(ctx, "session timed out",
			"username", sess.Username,
			"idle", now.Sub(sess.LastActivity).String())
		return a, a.logout(ctx, "timeout")
	}

	sess.Touch(now)
	return a, audit.Result{}
}

// CommitSession persists sess after a request. It returns a new plaintext
// token when the client cookie must change; an empty token with
// sess.Destroyed() true means the cookie must be cleared.
func (s *Service) CommitSession(ctx context.Context, sess *Session) (string, error) {
	switch {
	case sess.destroyed:
		if sess.persisted {
			if err := s.sessions.Delete(ctx, sess.ID); err != nil {
				return "", oops.Code("AUTH_SESSION_DELETE_FAILED").With("session_id", sess.ID.String()).Wrap(err)
			}
			sess.persisted = false
		}
		return "", nil

	case !sess.LoggedIn():
		return "", nil

	case sess.persisted && !sess.rotate:
		if err := s.sessions.Touch(ctx, sess.ID, sess.LastActivity); err != nil {
			return "", oops.Code("AUTH_SESSION_TOUCH_FAILED").With("session_id", sess.ID.String()).Wrap(err)
		}
		return "", nil
	}

	if sess.persisted {
		if err := s.sessions.Delete(ctx, sess.ID); err != nil {
			return "", oops.Code("AUTH_SESSION_DELETE_FAILED").With("session_id", sess.ID.String()).Wrap(err)
		}
	}

	token, hash, err := GenerateSessionToken()
	if err != nil {
		return "", err
	}
	sess.ID = ulid.Make()
	sess.TokenHash = hash
	sess.CreatedAt = s.now()
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", oops.Code("AUTH_SESSION_CREATE_FAILED").With("operation", "persist session").Wrap(err)
	}
	sess.persisted = true
	sess.rotate = false
	return token, nil
}

// SweepIdle deletes stored sessions idle for longer than the lifetime.
func (s *Service) SweepIdle(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteIdle(ctx, s.now().Add(-s.lifetime))
	if err != nil {
		return 0, oops.Code("AUTH_SESSION_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}

// RunSweeper calls SweepIdle every interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepIdle(ctx)
			if err != nil {
				errutil.LogErrorContext(ctx, s.logger, "session sweep failed", err)
				continue
			}
			if n > 0 {
				s.logger.DebugContext(ctx, "swept idle sessions", "count", n)
			}
		}
	}
}

// BootstrapAdmin creates an admin account without a session. It is meant
// for the command line, before any admin exists.
func (s *Service) BootstrapAdmin(ctx context.Context, in NewUserInput) (ulid.ULID, audit.Result, error) {
	in.Role = RoleAdmin
	return s.createUser(ctx, in, "")
}

func (s *Service) createUser(ctx context.Context, in NewUserInput, actorID string) (ulid.ULID, audit.Result, error) {
	if err := in.Validate(); err != nil {
		return ulid.ULID{}, audit.Result{}, err
	}

	exists, err := s.users.Exists(ctx, in.Username, in.Email)
	if err != nil {
		return ulid.ULID{}, audit.Result{}, oops.Code("AUTH_CREATE_USER_FAILED").
			With("operation", "check existing user").
			Public("could not create user").
			Wrap(err)
	}
	if exists {
		return ulid.ULID{}, audit.Result{}, userExists(in.Username)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return ulid.ULID{}, audit.Result{}, oops.Code("AUTH_CREATE_USER_FAILED").
			With("operation", "hash password").
			Public("could not create user").
			Wrap(err)
	}

	now := s.now()
	user := &User{
		ID:           ulid.Make(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return ulid.ULID{}, audit.Result{}, userExists(in.Username)
		}
		return ulid.ULID{}, audit.Result{}, oops.Code("AUTH_CREATE_USER_FAILED").
			With("operation", "insert user").
			Public("could not create user").
			Wrap(err)
	}

	res := s.audit.Record(ctx, audit.Entry{
		TableName: usersTable,
		RecordID:  user.ID.String(),
		Action:    audit.ActionCreate,
		NewValues: map[string]any{
			"username":  user.Username,
			"email":     user.Email,
			"full_name": user.FullName,
			"role":      string(user.Role),
		},
		UserID: actorID,
	})
	return user.ID, res, nil
}

func userExists(username string) error {
	return oops.Code("AUTH_USER_EXISTS").
		With("username", username).
		Public(ErrUserExists.Error()).
		Wrap(ErrUserExists)
}
