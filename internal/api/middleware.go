// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/auth"
	"github.com/contactdir/contactdir/internal/logging"
	"github.com/contactdir/contactdir/pkg/errutil"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = echo.HeaderXRequestID

const authenticatorKey = "authenticator"

// requestID takes the client's request id or makes one, echoes it back
// and puts it in the request context for logging.
func (s *Server) requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Response().Header().Set(RequestIDHeader, id)

		req := c.Request()
		c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		return next(c)
	}
}

// observe records request count and latency by route pattern.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.cfg.Metrics == nil {
			return next(c)
		}
		start := time.Now()
		err := next(c)
		if err != nil {
			// Write the error now so the recorded status is the real one.
			c.Error(err)
			err = nil
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.cfg.Metrics.Observe(c.Request().Method, route, c.Response().Status, time.Since(start))
		return err
	}
}

// session loads the request's session, applies the idle timeout and binds
// an Authenticator to the echo context. The session is committed just
// before the response is written so a rotated token can still be sent.
func (s *Server) session(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		var token string
		if cookie, err := c.Cookie(SessionCookie); err == nil {
			token = cookie.Value
		}

		sess, err := s.cfg.Auth.LoadSession(ctx, token, req.UserAgent(), c.RealIP())
		if err != nil {
			return err
		}

		actor := audit.Actor{IPAddress: sess.IPAddress, UserAgent: sess.UserAgent}
		if sess.UserID != nil {
			actor.UserID = sess.UserID.String()
		}
		ctx = audit.WithActor(ctx, actor)
		c.SetRequest(req.WithContext(ctx))

		authn, res := s.cfg.Auth.ForSession(ctx, sess)
		s.logDegraded(c, res)
		c.Set(authenticatorKey, authn)

		committed := false
		commit := func() {
			if committed {
				return
			}
			committed = true
			s.commitSession(c, sess, token != "")
		}
		c.Response().Before(commit)

		err = next(c)
		if !c.Response().Committed {
			commit()
		}
		return err
	}
}

// commitSession stores sess and sets or clears the cookie.
func (s *Server) commitSession(c echo.Context, sess *auth.Session, hadCookie bool) {
	ctx := c.Request().Context()
	token, err := s.cfg.Auth.CommitSession(ctx, sess)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "session commit failed", err)
		return
	}
	switch {
	case token != "":
		c.SetCookie(s.cookie(token, 0))
	case sess.Destroyed() && hadCookie:
		c.SetCookie(s.cookie("", -1))
	}
}

// cookie builds the session cookie. A zero maxAge makes it a browser
// session cookie; the server-side idle timeout ends the login.
func (s *Server) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// authenticator returns the request's Authenticator.
func authenticator(c echo.Context) *auth.Authenticator {
	a, _ := c.Get(authenticatorKey).(*auth.Authenticator)
	return a
}

// principalID returns the logged-in user's id as a string, or "".
func principalID(c echo.Context) string {
	if p, ok := authenticator(c).CurrentUser(); ok {
		return p.ID.String()
	}
	return ""
}

// logDegraded logs an audit write that did not reach the database.
func (s *Server) logDegraded(c echo.Context, res audit.Result) {
	if res.OK() {
		return
	}
	s.logger.WarnContext(c.Request().Context(), "audit degraded",
		"path", c.Path(),
		"fallback", res.Fallback,
		"error", res.Err)
}
