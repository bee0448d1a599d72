// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package observability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startServer starts s and stops it when the test ends.
func startServer(t *testing.T, s *Server) <-chan error {
	t.Helper()
	errCh, err := s.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return errCh
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := NewServer("127.0.0.1:0", func(context.Context) error { return nil })
	startServer(t, server)

	server.Metrics().Observe(http.MethodGet, "/api/contacts/:id", http.StatusOK, 15*time.Millisecond)
	server.Metrics().Observe(http.MethodGet, "/api/contacts/:id", http.StatusOK, 5*time.Millisecond)
	server.Metrics().Observe(http.MethodPost, "/api/create-business", http.StatusForbidden, time.Millisecond)

	status, body := get(t, "http://"+server.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `contactdir_http_requests_total{method="GET",route="/api/contacts/:id",status="200"} 2`)
	assert.Contains(t, body, `contactdir_http_requests_total{method="POST",route="/api/create-business",status="403"} 1`)
	assert.Contains(t, body, `contactdir_http_request_duration_seconds_count{method="GET",route="/api/contacts/:id"} 2`)
}

func TestServer_RegistryServesExtraCollectors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "contactdir_test_extra_total", Help: "test"})
	server.Registry().MustRegister(extra)
	extra.Add(3)
	startServer(t, server)

	_, body := get(t, "http://"+server.Addr()+"/metrics")
	assert.Contains(t, body, "contactdir_test_extra_total 3")
}

func TestServer_HealthEndpoints(t *testing.T) {
	tests := []struct {
		name    string
		checker ReadinessChecker
		path    string
		status  int
		body    string
	}{
		{"liveness", nil, "/healthz/liveness", http.StatusOK, "ok"},
		{"ready", func(context.Context) error { return nil }, "/healthz/readiness", http.StatusOK, "ok"},
		{"not ready", func(context.Context) error { return errors.New("db down") }, "/healthz/readiness", http.StatusServiceUnavailable, "not ready"},
		{"nil checker is ready", nil, "/healthz/readiness", http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer("127.0.0.1:0", tt.checker)
			startServer(t, server)

			status, body := get(t, "http://"+server.Addr()+tt.path)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.body, strings.TrimSpace(body))
		})
	}
}

func TestServer_ReadinessLogsReason(t *testing.T) {
	buf := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	server := NewServer("127.0.0.1:0",
		func(context.Context) error { return errors.New("db down") },
		WithLogger(logger))
	startServer(t, server)

	status, _ := get(t, "http://"+server.Addr()+"/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, buf.String(), "readiness check failed")
	assert.Contains(t, buf.String(), "db down")
}

func TestServer_ReadinessCheckIsBounded(t *testing.T) {
	server := NewServer("127.0.0.1:0",
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		WithReadinessTimeout(50*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	startServer(t, server)

	start := time.Now()
	status, body := get(t, "http://"+server.Addr()+"/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not ready", strings.TrimSpace(body))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	startServer(t, server)

	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	assert.NoError(t, server.Stop(context.Background()))
	assert.Empty(t, server.Addr())
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh := startServer(t, server)

	require.NoError(t, server.listener.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve error was not reported")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	require.NoError(t, server.Stop(context.Background()))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel did not close")
	}
}
