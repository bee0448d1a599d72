// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package auth provides users, sessions and role checks for contactdir.
//
// # Domain Types
//
// Users are created through NewUserInput.Validate and Service.CreateUser or
// Service.BootstrapAdmin. Sessions are created with NewSession and are owned
// by the request boundary: it loads or creates one per request, hands it to
// Service.ForSession, and persists the result with Service.CommitSession.
//
// # Roles
//
// The role hierarchy is fixed: admin, supervisor, material_handler,
// quality_inspector and viewer. Admin passes every role check.
//
// # Auditing
//
// Logins, failed logins, logouts and user creation are written to the audit
// log. Audit failures never fail the operation; they surface as a degraded
// audit.Result on the returned value.
package auth
