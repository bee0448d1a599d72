// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

//go:build integration

package directory_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/contactdir/contactdir/internal/api"
	"github.com/contactdir/contactdir/internal/auth"
)

var _ = Describe("HTTP API", func() {
	var (
		ctx    context.Context
		server *httptest.Server
		client *http.Client
	)

	call := func(method, path string, body any) (int, map[string]any) {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req, err := http.NewRequestWithContext(ctx, method, server.URL+path, &buf)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var out map[string]any
		if resp.StatusCode != http.StatusNoContent {
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		}
		return resp.StatusCode, out
	}

	login := func(username, password string) int {
		status, _ := call(http.MethodPost, "/api/login", map[string]string{
			"username": username,
			"password": password,
		})
		return status
	}

	BeforeEach(func() {
		ctx = context.Background()
		resetDirectory(ctx)

		srv, err := api.NewServer(api.Config{
			Auth:       env.Auth,
			Businesses: env.Businesses,
			Directory:  env.Directory,
			Contacts:   env.Contacts,
			Emails:     env.Emails,
		})
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(srv.Handler())
		DeferCleanup(server.Close)

		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		client = &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	})

	It("requires a login for directory reads", func() {
		status, body := call(http.MethodGet, "/api/businesses-simple", nil)
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body["success"]).To(BeFalse())
	})

	It("logs in, works and logs out", func() {
		Expect(login("admin", "wrong-password")).To(Equal(http.StatusUnauthorized))
		Expect(login("admin", adminPassword)).To(Equal(http.StatusOK))

		status, body := call(http.MethodGet, "/api/me", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["user"]).To(HaveKeyWithValue("username", "admin"))

		status, body = call(http.MethodPost, "/api/create-business", map[string]any{
			"business": map[string]any{"name": "Acme", "code": "acme", "is_customer": true},
			"contact":  map[string]any{"first_name": "Dana", "last_name": "Whitfield", "role": "Buyer"},
			"emails":   []map[string]any{{"email": "po@acme.example", "email_type": "department"}},
		})
		Expect(status).To(Equal(http.StatusCreated), "%v", body)
		businessID, _ := body["business_id"].(string)
		Expect(businessID).NotTo(BeEmpty())

		status, body = call(http.MethodGet, "/api/businesses/"+businessID+"/customer/contacts/primary", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["contact"]).To(HaveKeyWithValue("role", "Buyer"))

		status, body = call(http.MethodGet, "/api/businesses/"+businessID+"/customer/emails/exists?email=PO@acme.example", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["exists"]).To(BeTrue())

		status, _ = call(http.MethodPost, "/api/logout", nil)
		Expect(status).To(Equal(http.StatusOK))

		status, _ = call(http.MethodGet, "/api/me", nil)
		Expect(status).To(Equal(http.StatusUnauthorized))
	})

	It("rejects writes to a side the business does not have", func() {
		Expect(login("admin", adminPassword)).To(Equal(http.StatusOK))
		nwc := newBusiness(ctx, "NWC", false, true)
		alice := newContact(ctx, "Alice", "Anders")

		status, body := call(http.MethodPost, "/api/businesses/"+nwc.String()+"/customer/contacts", map[string]any{
			"contact_id": alice.String(),
			"role":       "Buyer",
			"is_primary": true,
		})
		Expect(status).To(Equal(http.StatusBadRequest), "%v", body)
		Expect(body["message"]).To(Equal("business is not a customer"))

		status, body = call(http.MethodPost, "/api/businesses/"+nwc.String()+"/customer/emails", map[string]any{
			"email":      "buyer@nwc.example",
			"email_type": "contact",
		})
		Expect(status).To(Equal(http.StatusBadRequest), "%v", body)

		var rows int
		err := env.pool.QueryRow(ctx, `
			SELECT (SELECT COUNT(*) FROM customer_contacts WHERE business_id = $1)
			     + (SELECT COUNT(*) FROM customer_emails WHERE business_id = $1)
		`, nwc.String()).Scan(&rows)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(BeZero())
	})

	It("lets only supervisors create businesses", func() {
		_, _, err := env.Auth.BootstrapAdmin(ctx, auth.NewUserInput{
			Username: "boss",
			Email:    "boss@example.com",
			Password: adminPassword,
		})
		if err != nil {
			Expect(err).To(MatchError(auth.ErrUserExists))
		}
		Expect(login("boss", adminPassword)).To(Equal(http.StatusOK))

		status, _ := call(http.MethodPost, "/api/users", map[string]any{
			"username": "clerk",
			"email":    "clerk@example.com",
			"password": adminPassword,
			"role":     "viewer",
		})
		if status != http.StatusCreated {
			Expect(status).To(Equal(http.StatusConflict))
		}
		Expect(login("clerk", adminPassword)).To(Equal(http.StatusOK))

		status, body := call(http.MethodPost, "/api/create-business", map[string]any{
			"business": map[string]any{"name": "Acme", "code": "ACME", "is_customer": true},
		})
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body["message"]).To(Equal("only supervisors can create businesses"))
	})

	It("logs out idle sessions after the lifetime", func() {
		Expect(login("admin", adminPassword)).To(Equal(http.StatusOK))

		env.clock.Advance(45 * time.Minute)
		status, _ := call(http.MethodGet, "/api/me", nil)
		Expect(status).To(Equal(http.StatusOK), "activity within the lifetime keeps the session")

		env.clock.Advance(45 * time.Minute)
		status, _ = call(http.MethodGet, "/api/me", nil)
		Expect(status).To(Equal(http.StatusOK), "the lifetime counts from the last request")

		env.clock.Advance(auth.DefaultSessionLifetime + time.Minute)
		status, _ = call(http.MethodGet, "/api/me", nil)
		Expect(status).To(Equal(http.StatusUnauthorized))
	})
})
