// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package api

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/contactdir/contactdir/internal/auth"
)

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Sign in</title>
</head>
<body>
<main>
<h1>Sign in</h1>
<form method="post" action="{{.Action}}">
<label>Username or email <input name="username" autocomplete="username" required autofocus></label>
<label>Password <input name="password" type="password" autocomplete="current-password" required></label>
<input type="hidden" name="next" value="{{.Next}}">
<button type="submit">Sign in</button>
</form>
</main>
</body>
</html>
`))

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Next     string `json:"next" form:"next"`
}

func (s *Server) loginForm(c echo.Context) error {
	var buf bytes.Buffer
	err := loginPage.Execute(&buf, struct{ Action, Next string }{
		Action: s.cfg.LoginPath,
		Next:   localPath(c.QueryParam("next")),
	})
	if err != nil {
		return err //nolint:wrapcheck // template errors go to the error handler as-is
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	res, err := authenticator(c).Login(ctx, req.Username, req.Password)
	s.logDegraded(c, res.Audit)

	if isFormPost(c.Request()) && wantsHTML(c.Request()) {
		if err != nil {
			return c.Redirect(http.StatusSeeOther, s.cfg.LoginPath+"?failed=1")
		}
		return c.Redirect(http.StatusSeeOther, localPath(req.Next))
	}
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"user": res.User})
}

func (s *Server) logout(c echo.Context) error {
	res := authenticator(c).Logout(c.Request().Context())
	s.logDegraded(c, res)

	if wantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, s.cfg.LoginPath)
	}
	return ok(c, echo.Map{"message": "logged out"})
}

func (s *Server) me(c echo.Context) error {
	a := authenticator(c)
	if err := a.RequireAuth(); err != nil {
		return err
	}
	p, _ := a.CurrentUser()
	return ok(c, echo.Map{"user": p})
}

func (s *Server) createUser(c echo.Context) error {
	var in auth.NewUserInput
	if err := bind(c, &in); err != nil {
		return err
	}
	id, res, err := authenticator(c).CreateUser(c.Request().Context(), in)
	if err != nil {
		return err
	}
	s.logDegraded(c, res)
	return created(c, echo.Map{"id": id})
}

// localPath returns p when it is a path on this site, otherwise "/".
func localPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	if u, err := url.Parse(p); err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return p
}

func isFormPost(r *http.Request) bool {
	ct := r.Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm)
}
