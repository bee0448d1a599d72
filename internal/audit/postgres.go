// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package audit

import (
	"context"
	"encoding/json"

	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/store"
)

// PostgresWriter writes entries to the audit_log table.
//
// It always uses the pool directly, never a transaction from the context,
// so a failed audit insert cannot abort the caller's transaction.
type PostgresWriter struct {
	pool store.Pool
}

// NewPostgresWriter creates a PostgresWriter.
func NewPostgresWriter(pool store.Pool) *PostgresWriter {
	return &PostgresWriter{pool: pool}
}

// Write inserts one audit row.
func (w *PostgresWriter) Write(ctx context.Context, entry Entry) error {
	oldJSON, err := marshalValues(entry.OldValues)
	if err != nil {
		return oops.Code("AUDIT_ENCODE_FAILED").With("field", "old_values").Wrap(err)
	}
	newJSON, err := marshalValues(entry.NewValues)
	if err != nil {
		return oops.Code("AUDIT_ENCODE_FAILED").With("field", "new_values").Wrap(err)
	}

	_, err = w.pool.Exec(ctx, `
		INSERT INTO audit_log (table_name, record_id, action, old_values, new_values, user_id, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		entry.TableName,
		store.NullIfEmpty(entry.RecordID),
		string(entry.Action),
		oldJSON,
		newJSON,
		store.NullIfEmpty(entry.UserID),
		entry.IPAddress,
		entry.UserAgent,
		entry.Timestamp,
	)
	if err != nil {
		return oops.Code("AUDIT_WRITE_FAILED").
			With("operation", "insert audit_log").
			With("table", entry.TableName).
			With("action", string(entry.Action)).
			Wrap(err)
	}
	return nil
}

func marshalValues(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v) //nolint:wrapcheck // caller wraps
}

var _ Writer = (*PostgresWriter)(nil)
