// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/auth"
	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/contact"
	"github.com/contactdir/contactdir/internal/email"
	"github.com/contactdir/contactdir/pkg/errutil"
)

// internalMessage is shown for errors without a public message.
const internalMessage = "internal error"

// badRequestCodes are validation failures answered with 400.
var badRequestCodes = map[string]bool{
	"API_INVALID_ID":              true,
	"API_INVALID_REQUEST":         true,
	"AUTH_EMPTY_PASSWORD":         true,
	"AUTH_INVALID_EMAIL":          true,
	"AUTH_INVALID_FULL_NAME":      true,
	"AUTH_INVALID_PASSWORD":       true,
	"AUTH_INVALID_ROLE":           true,
	"AUTH_INVALID_USERNAME":       true,
	"BUSINESS_INVALID":            true,
	"BUSINESS_INVALID_FILTER":     true,
	"BUSINESS_INVALID_RELATION":   true,
	"CONTACT_INVALID":             true,
	"CONTACT_INVALID_RELATION":    true,
	"CONTACT_INVALID_ROLE":        true,
	"DIRECTORY_RELATION_MISMATCH": true,
	"EMAIL_INVALID":               true,
	"EMAIL_INVALID_FORMAT":        true,
	"EMAIL_INVALID_RELATION":      true,
	"EMAIL_INVALID_TYPE":          true,
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrUserExists),
		errors.Is(err, business.ErrCodeExists),
		errors.Is(err, contact.ErrPrimaryConflict),
		errors.Is(err, email.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, business.ErrRelationMismatch):
		return http.StatusBadRequest
	case errors.Is(err, business.ErrNotFound),
		errors.Is(err, contact.ErrNotFound),
		errors.Is(err, email.ErrNotFound):
		return http.StatusNotFound
	}
	if badRequestCodes[errutil.Code(err)] {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handleError writes err as a JSON failure envelope. Server errors are
// logged and answered with their public message only. HTML clients that
// are not logged in are redirected to the login form.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	// Only echo's own errors (unknown route, bad method) are passed through;
	// wrapped ones carry a public message of their own.
	if he, ok := err.(*echo.HTTPError); ok { //nolint:errorlint // see above
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		s.writeFailure(c, he.Code, msg)
		return
	}

	status := statusFor(err)
	ctx := c.Request().Context()
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(ctx, s.logger, "request failed", err)
	} else {
		s.logger.DebugContext(ctx, "request rejected",
			"status", status,
			"code", errutil.Code(err),
			"error", err.Error())
	}

	if status == http.StatusUnauthorized && errors.Is(err, auth.ErrNotAuthenticated) && wantsHTML(c.Request()) {
		_ = c.Redirect(http.StatusSeeOther, s.cfg.LoginPath) //nolint:errcheck // nothing left to report to
		return
	}

	msg := internalMessage
	if status < http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	s.writeFailure(c, status, oops.GetPublic(err, msg))
}

func (s *Server) writeFailure(c echo.Context, status int, msg string) {
	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, failure(msg))
	}
	if werr != nil {
		s.logger.DebugContext(c.Request().Context(), "write error response", "error", werr)
	}
}

// wantsHTML reports whether the client prefers an HTML page to JSON.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMETextHTML) && !strings.Contains(accept, echo.MIMEApplicationJSON)
}

// invalidRequest reports a malformed request parameter.
func invalidRequest(msg string, err error) error {
	b := oops.Code("API_INVALID_REQUEST").Public(msg)
	if err != nil {
		return b.Wrap(err)
	}
	return b.Errorf("%s", msg)
}
