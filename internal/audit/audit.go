// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package audit records sensitive state changes to the audit_log table.
//
// Auditing is best-effort. A failed write never aborts the operation being
// audited; it is reported to the caller as a degraded Result, logged, counted
// and, when a fallback file is configured, appended there as JSON lines for
// later replay.
package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/contactdir/contactdir/pkg/errutil"
)

// Action names an audited event.
type Action string

// Audited actions.
const (
	ActionCreate      Action = "CREATE"
	ActionUpdate      Action = "UPDATE"
	ActionDelete      Action = "DELETE"
	ActionLogin       Action = "LOGIN"
	ActionLoginFailed Action = "LOGIN_FAILED"
	ActionLogout      Action = "LOGOUT"
)

// Entry is one audit_log row.
type Entry struct {
	TableName string         `json:"table_name"`
	RecordID  string         `json:"record_id,omitempty"`
	Action    Action         `json:"action"`
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Actor identifies who performed an audited change.
type Actor struct {
	UserID    string
	IPAddress string
	UserAgent string
}

type actorKey struct{}

// WithActor returns ctx carrying actor. Record fills empty entry fields from it.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by WithActor.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// Writer persists audit entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// Result reports the outcome of recording one entry.
type Result struct {
	// Degraded is true when the entry did not reach the primary writer.
	Degraded bool
	// Fallback is true when a degraded entry was saved to the fallback file.
	Fallback bool
	// Err is the primary write failure.
	Err error
}

// OK reports whether the entry was written normally.
func (r Result) OK() bool { return !r.Degraded }

// Merge combines two results; the merged result is degraded if either is.
func (r Result) Merge(other Result) Result {
	if !r.Degraded {
		return other
	}
	if other.Degraded {
		r.Err = errors.Join(r.Err, other.Err)
		r.Fallback = r.Fallback && other.Fallback
	}
	return r
}

// failuresCounter counts degraded audit writes by reason.
var failuresCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "contactdir_audit_failures_total",
		Help: "Total number of audit log writes that did not reach the database",
	},
	[]string{"reason"},
)

// RegisterMetrics registers audit metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(failuresCounter)
}

// Recorder writes entries through a Writer, falling back to a JSONL file.
type Recorder struct {
	writer       Writer
	fallbackPath string
	logger       *slog.Logger
	now          func() time.Time

	mu   sync.Mutex
	file *os.File
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithFallbackPath sets the JSONL file used when the writer fails.
func WithFallbackPath(path string) Option {
	return func(r *Recorder) { r.fallbackPath = path }
}

// WithLogger sets the logger for degraded writes.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a Recorder.
func NewRecorder(writer Writer, opts ...Option) *Recorder {
	r := &Recorder{
		writer: writer,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record writes entry. It never fails; problems are reported in the Result.
// When ctx carries a Buffer the entry is held there until Flush.
func (r *Recorder) Record(ctx context.Context, entry Entry) Result {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	if actor, ok := ActorFrom(ctx); ok {
		if entry.UserID == "" {
			entry.UserID = actor.UserID
		}
		if entry.IPAddress == "" {
			entry.IPAddress = actor.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = actor.UserAgent
		}
	}

	if buf := bufferFrom(ctx); buf != nil {
		buf.add(entry)
		return Result{}
	}
	return r.write(ctx, entry)
}

func (r *Recorder) write(ctx context.Context, entry Entry) Result {
	err := r.writer.Write(ctx, entry)
	if err == nil {
		return Result{}
	}

	res := Result{Degraded: true, Err: err}
	errutil.LogErrorContext(ctx, r.logger, "audit write failed", oops.
		With("table", entry.TableName).
		With("action", string(entry.Action)).
		With("record_id", entry.RecordID).
		Wrap(err))

	if r.fallbackPath == "" {
		failuresCounter.WithLabelValues("dropped").Inc()
		return res
	}
	if fbErr := r.appendFallback(entry); fbErr != nil {
		errutil.LogErrorContext(ctx, r.logger, "audit fallback write failed", fbErr)
		failuresCounter.WithLabelValues("fallback_failed").Inc()
		return res
	}
	failuresCounter.WithLabelValues("fallback").Inc()
	res.Fallback = true
	return res
}

func (r *Recorder) appendFallback(entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		f, err := os.OpenFile(r.fallbackPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return oops.Code("AUDIT_FALLBACK_OPEN_FAILED").With("path", r.fallbackPath).Wrap(err)
		}
		r.file = f
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return oops.Code("AUDIT_FALLBACK_ENCODE_FAILED").Wrap(err)
	}
	data = append(data, '\n')
	if _, err := r.file.Write(data); err != nil {
		return oops.Code("AUDIT_FALLBACK_WRITE_FAILED").With("path", r.fallbackPath).Wrap(err)
	}
	return nil
}

// ReplayFallback writes every entry in the fallback file through the writer
// and truncates the file. Entries that fail again stay in the file.
func (r *Recorder) ReplayFallback(ctx context.Context) (int, error) {
	if r.fallbackPath == "" {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.fallbackPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, oops.Code("AUDIT_FALLBACK_READ_FAILED").With("path", r.fallbackPath).Wrap(err)
	}

	var (
		replayed int
		retained bytes.Buffer
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			r.logger.WarnContext(ctx, "discarding unreadable audit fallback line", "error", err)
			continue
		}
		if err := r.writer.Write(ctx, entry); err != nil {
			retained.Write(line)
			retained.WriteByte('\n')
			continue
		}
		replayed++
	}
	if err := scanner.Err(); err != nil {
		return replayed, oops.Code("AUDIT_FALLBACK_READ_FAILED").With("path", r.fallbackPath).Wrap(err)
	}

	if r.file != nil {
		_ = r.file.Close() //nolint:errcheck // reopened on next append
		r.file = nil
	}
	if err := os.WriteFile(r.fallbackPath, retained.Bytes(), 0o600); err != nil {
		return replayed, oops.Code("AUDIT_FALLBACK_TRUNCATE_FAILED").With("path", r.fallbackPath).Wrap(err)
	}
	if replayed > 0 {
		r.logger.InfoContext(ctx, "replayed audit fallback entries", "count", replayed)
	}
	return replayed, nil
}

// Close releases the fallback file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	if err != nil {
		return oops.Code("AUDIT_FALLBACK_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
