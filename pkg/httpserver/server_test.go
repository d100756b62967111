package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pgtask/pkg/httpserver"
)

// startServer runs srv in the background and waits for its listener.
func startServer(t *testing.T, ctx context.Context, handler http.Handler, opts ...httpserver.Option) (string, <-chan error) {
	t.Helper()

	bound := make(chan net.Addr, 1)
	opts = append([]httpserver.Option{
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithShutdownTimeout(500 * time.Millisecond),
		httpserver.WithListenHook(func(a net.Addr) { bound <- a }),
	}, opts...)
	srv := httpserver.New(opts...)

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, handler) }()

	select {
	case a := <-bound:
		return "http://" + a.String(), done
	case err := <-done:
		require.FailNow(t, "server exited early", "%v", err)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "server did not start")
	}
	return "", done
}

func TestServer_RunAndShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stopped atomic.Bool
	url, done := startServer(t, ctx,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "pong") }),
		httpserver.WithShutdownHook(func() { stopped.Store(true) }),
	)

	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "run did not return")
	}
	assert.True(t, stopped.Load())
}

func TestServer_DrainsInFlightRequests(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entered := make(chan struct{})
	url, done := startServer(t, ctx, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		time.Sleep(100 * time.Millisecond)
		// The request context survives shutdown of the run context
		assert.NoError(t, r.Context().Err())
		w.WriteHeader(http.StatusAccepted)
	}))

	result := make(chan int, 1)
	go func() {
		resp, err := http.Get(url)
		if err != nil {
			result <- 0
			return
		}
		_ = resp.Body.Close()
		result <- resp.StatusCode
	}()

	<-entered
	cancel()

	assert.Equal(t, http.StatusAccepted, <-result)
	assert.NoError(t, <-done)
}

func TestServer_StartError(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := httpserver.New(httpserver.WithAddr(ln.Addr().String()))
	err = srv.Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
	assert.Nil(t, srv.Addr())
}

func TestServer_AlreadyRunning(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bound := make(chan net.Addr, 1)
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithListenHook(func(a net.Addr) { bound <- a }),
	)
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()

	addr := <-bound
	assert.Equal(t, addr.String(), srv.Addr().String())
	assert.ErrorIs(t, srv.Run(ctx, nil), httpserver.ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
	assert.Nil(t, srv.Addr())
}

func TestServer_NilHandlerServesNotFound(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	url, done := startServer(t, ctx, nil)

	resp, err := http.Get(url + "/anything")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bound := make(chan net.Addr, 1)
	srv := httpserver.NewFromConfig(httpserver.Config{
		Addr:            "127.0.0.1:0",
		ReadTimeout:     time.Second,
		ShutdownTimeout: time.Second,
	}, httpserver.WithListenHook(func(a net.Addr) { bound <- a }))

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()

	select {
	case a := <-bound:
		assert.Equal(t, "127.0.0.1", a.(*net.TCPAddr).IP.String())
	case <-time.After(2 * time.Second):
		require.FailNow(t, "server did not start")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpserver.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	ok := httpserver.Check{Name: "postgres", Probe: func(context.Context) error { return nil }}
	broken := httpserver.Check{Name: "cache", Probe: func(context.Context) error { return errors.New("connection refused") }}
	slow := httpserver.Check{Name: "slow", Probe: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	t.Run("ready", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		httpserver.ReadinessHandler(nil, time.Second, ok)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ready","checks":{"postgres":"ok"}}`, rec.Body.String())
	})

	t.Run("one failing check", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		httpserver.ReadinessHandler(nil, time.Second, ok, broken)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body httpserver.HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, httpserver.StatusNotReady, body.Status)
		assert.Equal(t, "ok", body.Checks["postgres"])
		assert.Equal(t, "connection refused", body.Checks["cache"])
	})

	t.Run("check timeout", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		httpserver.ReadinessHandler(nil, 20*time.Millisecond, slow)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "deadline exceeded")
	})
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpserver.WriteError(rec, http.StatusBadRequest, "bad id")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"bad id"}`, rec.Body.String())
}
