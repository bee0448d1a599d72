// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/business"
)

// success builds a {"success": true, ...} envelope.
func success(fields echo.Map) echo.Map {
	out := echo.Map{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// failure builds a {"success": false, "message": ...} envelope.
func failure(msg string) echo.Map {
	return echo.Map{"success": false, "message": msg}
}

func ok(c echo.Context, fields echo.Map) error {
	return c.JSON(http.StatusOK, success(fields))
}

func created(c echo.Context, fields echo.Map) error {
	return c.JSON(http.StatusCreated, success(fields))
}

// parseID parses the ULID in s, naming field in the error.
func parseID(field, s string) (ulid.ULID, error) {
	if s == "" {
		return ulid.ULID{}, oops.Code("API_INVALID_ID").
			With("field", field).
			Public(field+" is required").
			Errorf("%s is required", field)
	}
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("API_INVALID_ID").
			With("field", field).
			With("value", s).
			Public("invalid " + field).
			Wrap(err)
	}
	return id, nil
}

// target returns the business id and relation of a
// /businesses/:id/:relation route.
func target(c echo.Context) (ulid.ULID, business.Relation, error) {
	id, err := parseID("business id", c.Param("id"))
	if err != nil {
		return ulid.ULID{}, "", err
	}
	rel, err := business.ParseRelation(c.Param("relation"))
	if err != nil {
		return ulid.ULID{}, "", err
	}
	return id, rel, nil
}

// bind decodes the request body into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return invalidRequest("malformed request body", err)
	}
	return nil
}
