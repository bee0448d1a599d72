// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/contactdir/contactdir/internal/auth"
	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/contact"
	"github.com/contactdir/contactdir/internal/directory"
	"github.com/contactdir/contactdir/internal/email"
)

func (s *Server) listBusinesses(c echo.Context) error {
	if err := authenticator(c).RequireAuth(); err != nil {
		return err
	}
	filter, err := business.ParseFilter(c.QueryParam("type"))
	if err != nil {
		return err
	}
	list, err := s.cfg.Businesses.ListSimple(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"businesses": list})
}

func (s *Server) businessStats(c echo.Context) error {
	if err := authenticator(c).RequireAuth(); err != nil {
		return err
	}
	stats, err := s.cfg.Businesses.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"stats": stats})
}

func (s *Server) businessDetail(c echo.Context) error {
	if err := authenticator(c).RequireAuth(); err != nil {
		return err
	}
	id, err := parseID("business id", c.QueryParam("id"))
	if err != nil {
		return err
	}
	d, err := s.cfg.Directory.Detail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{
		"business":          d.Business,
		"customer_contacts": d.CustomerContacts,
		"supplier_contacts": d.SupplierContacts,
		"customer_emails":   d.CustomerEmails,
		"supplier_emails":   d.SupplierEmails,
	})
}

func (s *Server) createBusiness(c echo.Context) error {
	a := authenticator(c)
	if err := a.RequireRole("only supervisors can create businesses", auth.RoleSupervisor); err != nil {
		return err
	}

	var in directory.CreateInput
	if isFormPost(c.Request()) {
		form, err := c.FormParams()
		if err != nil {
			return invalidRequest("malformed form", err)
		}
		if in, err = createInputFromForm(form); err != nil {
			return err
		}
	} else if err := bind(c, &in); err != nil {
		return err
	}

	out, res, err := s.cfg.Directory.CreateBusiness(c.Request().Context(), in, principalID(c))
	if err != nil {
		return err
	}
	s.logDegraded(c, res)
	return created(c, echo.Map{
		"business_id": out.BusinessID,
		"contact_id":  out.ContactID,
		"email_ids":   out.EmailIDs,
	})
}

// createInputFromForm reads a create-business form. Contact fields carry a
// "contact_" prefix and emails come as parallel email, email_type,
// email_relation and email_description lists. A contact is created only
// when a first or last name is given.
func createInputFromForm(form url.Values) (directory.CreateInput, error) {
	var in directory.CreateInput
	b := &in.Business
	b.Name = form.Get("name")
	b.Code = form.Get("code")
	b.IsCustomer = formBool(form.Get("is_customer"))
	b.IsSupplier = formBool(form.Get("is_supplier"))
	b.Address = form.Get("address")
	b.City = form.Get("city")
	b.State = form.Get("state")
	b.PostalCode = form.Get("postal_code")
	b.Country = form.Get("country")
	b.PaymentTerms = form.Get("payment_terms")

	if v := strings.TrimSpace(form.Get("credit_limit")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return in, invalidRequest("credit limit must be a number", err)
		}
		b.CreditLimit = &f
	}
	if v := strings.TrimSpace(form.Get("lead_time_days")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return in, invalidRequest("lead time must be a whole number of days", err)
		}
		b.LeadTimeDays = &n
	}

	ci := contact.Input{
		FirstName:  form.Get("contact_first_name"),
		LastName:   form.Get("contact_last_name"),
		Email:      form.Get("contact_email"),
		Phone:      form.Get("contact_phone"),
		PhoneExt:   form.Get("contact_phone_ext"),
		Mobile:     form.Get("contact_mobile"),
		JobTitle:   form.Get("contact_job_title"),
		Department: form.Get("contact_department"),
		Notes:      form.Get("contact_notes"),
	}
	if strings.TrimSpace(ci.FirstName) != "" || strings.TrimSpace(ci.LastName) != "" {
		in.Contact = &directory.ContactInput{Input: ci, Role: contact.Role(form.Get("contact_role"))}
	}

	types := form["email_type"]
	rels := form["email_relation"]
	descs := form["email_description"]
	for i, addr := range form["email"] {
		if strings.TrimSpace(addr) == "" {
			continue
		}
		e := directory.EmailInput{Address: addr, Type: email.Type(at(types, i))}
		e.Description = at(descs, i)
		if r := at(rels, i); r != "" {
			rel, err := business.ParseRelation(r)
			if err != nil {
				return in, err
			}
			e.Relation = rel
		}
		in.Emails = append(in.Emails, e)
	}
	return in, nil
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func at(vs []string, i int) string {
	if i < len(vs) {
		return vs[i]
	}
	return ""
}
