// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, Defaults().Sweep, cfg.Sweep)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listenAddr: ":9090"
store:
  backend: sqlite
  path: /var/lib/qod/sessions.db
sweep:
  interval: 30s
`)
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 30*time.Second, cfg.Sweep.Interval)
	// Untouched keys keep their defaults.
	assert.Equal(t, Defaults().Sweep.LockTTL, cfg.Sweep.LockTTL)
	assert.Equal(t, Defaults().Server.RateLimitRequests, cfg.Server.RateLimitRequests)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  listenAddr: \":9090\"\n")
	t.Setenv("QOD_LISTEN_ADDR", ":7070")
	t.Setenv("QOD_ASYNC_ALLOCATION", "yes")
	t.Setenv("QOD_PUBLISHERS", "http, memory")
	t.Setenv("QOD_DEFAULT_DURATION", "120")
	t.Setenv("QOD_NOTIFY_ALLOW_CIDRS", "10.1.0.0/16")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
	assert.True(t, cfg.Session.AsyncAllocation)
	assert.Equal(t, []string{"http", "memory"}, cfg.Notify.Publishers)
	assert.Equal(t, int64(120), cfg.Session.DefaultDuration)
	assert.Equal(t, []string{"10.1.0.0/16"}, cfg.Notify.SinkAllowCIDRs)
	assert.Contains(t, l.ConsumedEnvKeys, "QOD_LISTEN_ADDR")
}

func TestLoad_StrictRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "server:\n  listenAdress: \":9090\"\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "dev").Load()
	assert.Error(t, err)
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n---\nlog:\n  level: info\n")
	_, err := NewLoader(path, "dev").Load()
	assert.Error(t, err)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Backend = "badger"
	cfg.Lock.Backend = "zookeeper"
	cfg.Sweep.LockTTL = cfg.Sweep.Interval
	cfg.Network.BaseURL = "nef.example.com"
	cfg.Notify.Publishers = []string{"kafka"}
	cfg.Notify.SinkAllowCIDRs = []string{"10.0.0.0/40"}

	err := Validate(cfg)
	require.Error(t, err)
	for _, field := range []string{"store.path", "lock.backend", "sweep.lockTTL", "network.baseURL", "network.callbackBaseURL", "notify.publishers", "notify.sinkAllowCIDRs"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestValidate_LockTTLMustBeShorterThanInterval(t *testing.T) {
	cfg := Defaults()
	cfg.Sweep.Interval = 10 * time.Second
	cfg.Sweep.LockTTL = 9 * time.Second
	assert.NoError(t, Validate(cfg))

	cfg.Sweep.LockTTL = 11 * time.Second
	assert.Error(t, Validate(cfg))
}

func TestNotificationURL(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, cfg.NotificationURL())
	cfg.Network.CallbackBaseURL = "https://qod.example.com/"
	assert.Equal(t, "https://qod.example.com/notifications", cfg.NotificationURL())
}

func TestDump_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "hunter2"
	cfg.Version = "v9"

	out, err := Dump(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
	assert.NotContains(t, string(out), "v9")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	redis := back["redis"].(map[string]any)
	assert.Equal(t, "***", redis["password"])
	sweep := back["sweep"].(map[string]any)
	assert.Equal(t, "10s", sweep["interval"])
}

func TestMaskSecrets_Maps(t *testing.T) {
	in := map[string]any{
		"username": "admin",
		"password": "secret123",
		"nested":   map[string]any{"apiToken": "abc", "host": "example.com"},
		"empty":    map[string]string{"secret": ""},
	}
	out := MaskSecrets(in).(map[string]any)
	assert.Equal(t, "admin", out["username"])
	assert.Equal(t, "***", out["password"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "***", nested["apiToken"])
	assert.Equal(t, "example.com", nested["host"])
	assert.Equal(t, "", out["empty"].(map[string]any)["secret"])
	assert.Nil(t, MaskSecrets(nil))
}
