// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package api serves the directory over HTTP: a JSON API for the contact
// manager and a static login form.
//
// Every request gets an explicit auth.Session loaded from the session
// cookie. Handlers reach it through the per-request auth.Authenticator and
// the session is written back before the response headers go out.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/auth"
	"github.com/contactdir/contactdir/internal/business"
	"github.com/contactdir/contactdir/internal/contact"
	"github.com/contactdir/contactdir/internal/directory"
	"github.com/contactdir/contactdir/internal/email"
	"github.com/contactdir/contactdir/internal/observability"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "contactdir_session"

// DefaultLoginPath is where HTML clients are sent when not logged in.
const DefaultLoginPath = "/login"

// AuthService loads, binds and stores request sessions. *auth.Service
// satisfies it.
type AuthService interface {
	LoadSession(ctx context.Context, token, userAgent, ipAddress string) (*auth.Session, error)
	ForSession(ctx context.Context, sess *auth.Session) (*auth.Authenticator, audit.Result)
	CommitSession(ctx context.Context, sess *auth.Session) (string, error)
}

// BusinessService lists businesses. *business.Service satisfies it.
type BusinessService interface {
	ListSimple(ctx context.Context, filter business.Filter) ([]business.Summary, error)
	Stats(ctx context.Context) (business.Stats, error)
}

// DirectoryService composes businesses, contacts and emails.
// *directory.Service satisfies it.
type DirectoryService interface {
	CreateBusiness(ctx context.Context, in directory.CreateInput, createdBy string) (directory.Created, audit.Result, error)
	Detail(ctx context.Context, id ulid.ULID) (*directory.Detail, error)
}

// ContactService manages contacts. *contact.Service satisfies it.
type ContactService interface {
	CreateContact(ctx context.Context, in contact.Input, createdBy string) (ulid.ULID, audit.Result, error)
	UpdateContact(ctx context.Context, id ulid.ULID, in contact.Input) (audit.Result, error)
	GetContact(ctx context.Context, id ulid.ULID) (*contact.Contact, error)
	Link(ctx context.Context, rel business.Relation, contactID, businessID ulid.ULID, role contact.Role, primary bool) (audit.Result, error)
	Unlink(ctx context.Context, rel business.Relation, contactID, businessID ulid.ULID) (audit.Result, error)
	Contacts(ctx context.Context, rel business.Relation, businessID ulid.ULID) ([]contact.Linked, error)
	PrimaryContact(ctx context.Context, rel business.Relation, businessID ulid.ULID) (*contact.Linked, error)
	SearchContacts(ctx context.Context, term string) ([]contact.Contact, error)
}

// EmailService manages business emails. *email.Service satisfies it.
type EmailService interface {
	Add(ctx context.Context, rel business.Relation, in email.AddInput, createdBy string) (ulid.ULID, audit.Result, error)
	List(ctx context.Context, rel business.Relation, businessID ulid.ULID, t email.Type) ([]email.Email, error)
	Remove(ctx context.Context, rel business.Relation, id ulid.ULID) (audit.Result, error)
	Exists(ctx context.Context, rel business.Relation, businessID ulid.ULID, address string) (bool, error)
}

// Config holds the Server dependencies.
type Config struct {
	Auth       AuthService
	Businesses BusinessService
	Directory  DirectoryService
	Contacts   ContactService
	Emails     EmailService

	// Metrics is optional.
	Metrics *observability.Metrics
	Logger  *slog.Logger

	LoginPath    string
	CookieSecure bool
}

// Server is the HTTP API server.
type Server struct {
	cfg        Config
	echo       *echo.Echo
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer validates cfg and builds the routes.
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Auth == nil:
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("auth service is required")
	case cfg.Businesses == nil:
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("business service is required")
	case cfg.Directory == nil:
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("directory service is required")
	case cfg.Contacts == nil:
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("contact service is required")
	case cfg.Emails == nil:
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("email service is required")
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{cfg: cfg, echo: e, logger: logger}
	e.HTTPErrorHandler = s.handleError
	s.routes()
	return s, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() {
	e := s.echo
	e.Use(s.requestID, s.observe, s.session)

	e.GET(s.cfg.LoginPath, s.loginForm)
	e.POST(s.cfg.LoginPath, s.login)
	e.POST("/logout", s.logout)

	g := e.Group("/api")
	g.GET("/me", s.me)
	g.POST("/login", s.login)
	g.POST("/logout", s.logout)
	g.POST("/users", s.createUser)

	g.GET("/businesses-simple", s.listBusinesses)
	g.GET("/business-stats", s.businessStats)
	g.GET("/business-detail", s.businessDetail)
	g.POST("/create-business", s.createBusiness)

	g.POST("/contacts", s.createContact)
	g.GET("/contacts/search", s.searchContacts)
	g.GET("/contacts/:id", s.getContact)
	g.PUT("/contacts/:id", s.updateContact)

	b := g.Group("/businesses/:id/:relation")
	b.GET("/contacts", s.listContacts)
	b.POST("/contacts", s.linkContact)
	b.GET("/contacts/primary", s.primaryContact)
	b.DELETE("/contacts/:contactID", s.unlinkContact)
	b.GET("/emails", s.listEmails)
	b.POST("/emails", s.addEmail)
	b.GET("/emails/exists", s.emailExists)

	g.DELETE("/customer-emails/:emailID", s.removeEmail(business.RelationCustomer))
	g.DELETE("/supplier-emails/:emailID", s.removeEmail(business.RelationSupplier))
	g.GET("/validate-email", s.validateEmail)
}

// Start begins serving on addr. The returned channel receives a serve
// error, if any, and is closed when the server stops.
func (s *Server) Start(addr string) (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the listen address. It is empty before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
