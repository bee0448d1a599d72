// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactdir/contactdir/pkg/errutil"
)

func TestPostgresWriter_Write(t *testing.T) {
	recordID := "01J0000000000000000000000A"
	userID := "01J0000000000000000000000B"
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		entry     Entry
		setupMock func(mock pgxmock.PgxPoolIface)
		wantCode  string
	}{
		{
			name: "inserts row with json values",
			entry: Entry{
				TableName: "contacts",
				RecordID:  recordID,
				Action:    ActionCreate,
				NewValues: map[string]any{"first_name": "John"},
				UserID:    userID,
				IPAddress: "10.0.0.1",
				UserAgent: "test-agent",
				Timestamp: ts,
			},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO audit_log`).
					WithArgs("contacts", &recordID, "CREATE", []byte(nil), []byte(`{"first_name":"John"}`),
						&userID, "10.0.0.1", "test-agent", ts).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name:  "login failure without record or user",
			entry: Entry{TableName: "users", Action: ActionLoginFailed, Timestamp: ts},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO audit_log`).
					WithArgs("users", (*string)(nil), "LOGIN_FAILED", []byte(nil), []byte(nil),
						(*string)(nil), "", "", ts).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name:  "database error",
			entry: Entry{TableName: "users", Action: ActionLogout, Timestamp: ts},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO audit_log`).
					WillReturnError(errors.New("relation audit_log does not exist"))
			},
			wantCode: "AUDIT_WRITE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(mock)

			err = NewPostgresWriter(mock).Write(context.Background(), tt.entry)
			if tt.wantCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
