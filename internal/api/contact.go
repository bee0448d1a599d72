// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package api

import (
	"github.com/labstack/echo/v4"

	"github.com/contactdir/contactdir/internal/auth"
	"github.com/contactdir/contactdir/internal/contact"
)

const editContactsMessage = "only supervisors can change contacts"

type contactRequest struct {
	FirstName  string `json:"first_name" form:"first_name"`
	LastName   string `json:"last_name" form:"last_name"`
	Email      string `json:"email" form:"email"`
	Phone      string `json:"phone" form:"phone"`
	PhoneExt   string `json:"phone_ext" form:"phone_ext"`
	Mobile     string `json:"mobile" form:"mobile"`
	JobTitle   string `json:"job_title" form:"job_title"`
	Department string `json:"department" form:"department"`
	Notes      string `json:"notes" form:"notes"`
}

func (r contactRequest) input() contact.Input {
	return contact.Input(r)
}

type linkRequest struct {
	ContactID string `json:"contact_id" form:"contact_id"`
	Role      string `json:"role" form:"role"`
	IsPrimary bool   `json:"is_primary" form:"is_primary"`
}

func (s *Server) createContact(c echo.Context) error {
	if err := authenticator(c).RequireRole(editContactsMessage, auth.RoleSupervisor); err != nil {
		return err
	}
	var req contactRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, res, err := s.cfg.Contacts.CreateContact(c.Request().Context(), req.input(), principalID(c))
	if err != nil {
		return err
	}
	s.logDegraded(c, res)
	return created(c, echo.Map{"id": id})
}

func (s *Server) getContact(c echo.Context) error {
	if err := authenticator(c).RequireAuth(); err != nil {
		return err
	}
	id, err := parseID("contact id", c.Param("id"))
	if err != nil {
		return err
	}
	ct, err := s.cfg.Contacts.GetContact(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"contact": ct})
}

func (s *Server) updateContact(c echo.Context) error {
	if err := authenticator(c).RequireRole(editContactsMessage, auth.RoleSupervisor); err != nil {
		return err
	}
	id, err := parseID("contact id", c.Param("id"))
	if err != nil {
		return err
	}
	var req contactRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.cfg.Contacts.UpdateContact(c.Request().Context(), id, req.input())
	if err != nil {
		return err
	}
	s.logDegraded(c, res)
	return ok(c, echo.Map{"message": "contact updated"})
}

func (s *Server) searchContacts(c echo.Context) error {
	if err := authenticator(c).RequireAuth(); err != nil {
		return err
	}
	list, err := s.cfg.Contacts.SearchContacts(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"contacts": list})
}

func (s *Server) listContacts(c echo.Context) error {
	if err := authenticator(c).RequireAuth(); err != nil {
		return err
	}
	id, rel, err := target(c)
	if err != nil {
		return err
	}
	list, err := s.cfg.Contacts.Contacts(c.Request().Context(), rel, id)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"contacts": list})
}

func (s *Server) primaryContact(c echo.Context) error {
	if err := authenticator(c).RequireAuth(); err != nil {
		return err
	}
	id, rel, err := target(c)
	if err != nil {
		return err
	}
	l, err := s.cfg.Contacts.PrimaryContact(c.Request().Context(), rel, id)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"contact": l})
}

func (s *Server) linkContact(c echo.Context) error {
	if err := authenticator(c).RequireRole(editContactsMessage, auth.RoleSupervisor); err != nil {
		return err
	}
	businessID, rel, err := target(c)
	if err != nil {
		return err
	}
	var req linkRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	contactID, err := parseID("contact id", req.ContactID)
	if err != nil {
		return err
	}
	res, err := s.cfg.Contacts.Link(c.Request().Context(), rel, contactID, businessID, contact.Role(req.Role), req.IsPrimary)
	if err != nil {
		return err
	}
	s.logDegraded(c, res)
	return ok(c, echo.Map{"message": "contact linked"})
}

func (s *Server) unlinkContact(c echo.Context) error {
	if err := authenticator(c).RequireRole(editContactsMessage, auth.RoleSupervisor); err != nil {
		return err
	}
	businessID, rel, err := target(c)
	if err != nil {
		return err
	}
	contactID, err := parseID("contact id", c.Param("contactID"))
	if err != nil {
		return err
	}
	res, err := s.cfg.Contacts.Unlink(c.Request().Context(), rel, contactID, businessID)
	if err != nil {
		return err
	}
	s.logDegraded(c, res)
	return ok(c, echo.Map{"message": "contact unlinked"})
}
