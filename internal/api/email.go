// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package api

import (
	"github.com/labstack/echo/v4"

	"github.com/contactdir/contactdir/internal/auth"
	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/email"
)

const editEmailsMessage = "only supervisors can change emails"

type emailRequest struct {
	Email       string `json:"email" form:"email"`
	Type        string `json:"email_type" form:"email_type"`
	Description string `json:"description" form:"description"`
}

func (s *Server) listEmails(c echo.Context) error {
	if err := authenticator(c).RequireAuth(); err != nil {
		return err
	}
	id, rel, err := target(c)
	if err != nil {
		return err
	}
	format, err := email.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return err
	}
	list, err := s.cfg.Emails.List(c.Request().Context(), rel, id, email.Type(c.QueryParam("type")))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"emails": email.Project(list, format)})
}

func (s *Server) addEmail(c echo.Context) error {
	if err := authenticator(c).RequireRole(editEmailsMessage, auth.RoleSupervisor); err != nil {
		return err
	}
	id, rel, err := target(c)
	if err != nil {
		return err
	}
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	emailID, res, err := s.cfg.Emails.Add(c.Request().Context(), rel, email.AddInput{
		BusinessID:  id,
		Address:     req.Email,
		Type:        email.Type(req.Type),
		Description: req.Description,
	}, principalID(c))
	if err != nil {
		return err
	}
	s.logDegraded(c, res)
	return created(c, echo.Map{"id": emailID})
}

func (s *Server) emailExists(c echo.Context) error {
	if err := authenticator(c).RequireAuth(); err != nil {
		return err
	}
	id, rel, err := target(c)
	if err != nil {
		return err
	}
	exists, err := s.cfg.Emails.Exists(c.Request().Context(), rel, id, c.QueryParam("email"))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"exists": exists})
}

func (s *Server) removeEmail(rel business.Relation) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authenticator(c).RequireRole(editEmailsMessage, auth.RoleSupervisor); err != nil {
			return err
		}
		id, err := parseID("email id", c.Param("emailID"))
		if err != nil {
			return err
		}
		res, err := s.cfg.Emails.Remove(c.Request().Context(), rel, id)
		if err != nil {
			return err
		}
		s.logDegraded(c, res)
		return ok(c, echo.Map{"message": "email removed"})
	}
}

func (s *Server) validateEmail(c echo.Context) error {
	if err := authenticator(c).RequireAuth(); err != nil {
		return err
	}
	return ok(c, echo.Map{"valid": email.Validate(c.QueryParam("email"))})
}
