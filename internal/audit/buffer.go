// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package audit

import (
	"context"
	"sync"
)

type bufferKey struct{}

// Buffer holds entries recorded inside a transaction. Flush them after the
// commit; drop the buffer on rollback so no row describes a change that
// never happened.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
}

// WithBuffer returns ctx carrying a new Buffer.
func WithBuffer(ctx context.Context) (context.Context, *Buffer) {
	buf := &Buffer{}
	return context.WithValue(ctx, bufferKey{}, buf), buf
}

func bufferFrom(ctx context.Context) *Buffer {
	buf, _ := ctx.Value(bufferKey{}).(*Buffer)
	return buf
}

func (b *Buffer) add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
}

// Len returns the number of held entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Discard drops every held entry.
func (b *Buffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

func (b *Buffer) drain() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.entries
	b.entries = nil
	return entries
}

// Flush writes every entry held by buf, in recording order, and empties it.
// The merged Result is degraded if any write was.
func (r *Recorder) Flush(ctx context.Context, buf *Buffer) Result {
	var res Result
	if buf == nil {
		return res
	}
	ctx = context.WithValue(ctx, bufferKey{}, (*Buffer)(nil))
	for _, e := range buf.drain() {
		res = res.Merge(r.write(ctx, e))
	}
	return res
}
