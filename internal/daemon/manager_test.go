// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/ManuGH/qod/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
}

func TestNewManager_InvalidDeps(t *testing.T) {
	_, err := NewManager(config.ServerConfig{}, Deps{Logger: zerolog.Nop(), APIHandler: okHandler()})
	require.ErrorIs(t, err, ErrMissingLogger)

	_, err = NewManager(config.ServerConfig{}, Deps{Logger: testLogger()})
	require.ErrorIs(t, err, ErrMissingAPIHandler)
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(config.ServerConfig{}, Deps{Logger: testLogger(), APIHandler: okHandler()})
	require.NoError(t, err)
	require.ErrorIs(t, m.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManager_ServesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln := listen(t)
	m, err := NewManager(config.ServerConfig{ShutdownTimeout: time.Second}, Deps{
		Logger:     testLogger(),
		APIHandler: okHandler(),
		Listener:   ln,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	client := &http.Client{Timeout: 2 * time.Second}
	defer client.CloseIdleConnections()
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && string(body) == "ok"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("manager did not stop")
	}

	// A second shutdown is a no-op.
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_ListenFailureIsReported(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	busy := listen(t)
	defer func() { _ = busy.Close() }()

	m, err := NewManager(config.ServerConfig{
		ListenAddr:      busy.Addr().String(),
		ShutdownTimeout: time.Second,
	}, Deps{Logger: testLogger(), APIHandler: okHandler()})
	require.NoError(t, err)

	select {
	case err := <-startAsync(m):
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API server (HTTP)")
	case <-time.After(3 * time.Second):
		t.Fatal("expected listen failure")
	}
}

func startAsync(m Manager) <-chan error {
	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()
	return done
}
