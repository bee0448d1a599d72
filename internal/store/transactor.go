// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

type txKey struct{}

// Transactor runs functions inside a database transaction. The active pgx.Tx
// travels in the context so repositories built on Conn join it.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a Transactor backed by pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// InTransaction begins a transaction, stores it in ctx and calls fn.
// fn returning nil commits; any error rolls back. Nested calls join the
// outer transaction.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

// TxFromContext returns the transaction stored by InTransaction, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// Conn returns the transaction carried by ctx, or pool when there is none.
func Conn(ctx context.Context, pool Pool) Pool {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return pool
}

// WithinTx runs fn in a transaction on whatever Conn(ctx, pool) resolves to.
// Inside an outer transaction this becomes a savepoint.
func WithinTx(ctx context.Context, pool Pool, fn func(tx pgx.Tx) error) error {
	tx, err := Conn(ctx, pool).Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}
