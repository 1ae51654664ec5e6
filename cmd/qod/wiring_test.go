// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/qod/internal/config"
	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/lock"
	"github.com/ManuGH/qod/internal/network"
	"github.com/ManuGH/qod/internal/notify"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNeedsRedis(t *testing.T) {
	cfg := config.Defaults()
	assert.False(t, needsRedis(cfg))

	cfg.Lock.Backend = "redis"
	assert.True(t, needsRedis(cfg))

	cfg = config.Defaults()
	cfg.Notify.Publishers = []string{"http", "redis"}
	assert.True(t, needsRedis(cfg))
}

func TestBuildLocker_SharesRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Defaults()
	cfg.Lock.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()

	rdb, err := lock.DialRedis(redisConfig(cfg))
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()

	l, c, err := buildLocker(cfg, rdb, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, c, "the shared client is closed by its owner")

	tok, ok, err := l.TryAcquire(context.Background(), cfg.Lock.Key, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(cfg.Redis.KeyPrefix+cfg.Lock.Key))
	require.NoError(t, l.Release(context.Background(), tok))
}

func TestBuildLocker_Memory(t *testing.T) {
	l, c, err := buildLocker(config.Defaults(), nil, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.IsType(t, &lock.MemoryLocker{}, l)
	assert.NoError(t, c.fn())
}

func TestBuildPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Defaults()
	cfg.Redis.Addr = mr.Addr()
	rdb, err := lock.DialRedis(redisConfig(cfg))
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()

	cfg.Notify.Publishers = []string{"http"}
	p, watchers, err := buildPublisher(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &notify.HTTPPublisher{}, p)
	assert.Empty(t, watchers)

	cfg.Notify.Publishers = []string{"http", "redis", "memory"}
	p, watchers, err = buildPublisher(cfg, rdb)
	require.NoError(t, err)
	require.IsType(t, notify.Multi{}, p)
	assert.Len(t, p.(notify.Multi), 3)
	assert.Len(t, watchers, 1)

	cfg.Notify.Publishers = nil
	p, _, err = buildPublisher(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, notify.Discard{}, p)

	cfg.Notify.Publishers = []string{"redis"}
	_, _, err = buildPublisher(cfg, nil)
	assert.Error(t, err)
}

func TestEventLog_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bus := notify.NewMemoryBus("urn:qod:test")
	w := eventLog{sub: bus.Subscribe()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	s := &model.QosSession{SessionID: "s-1", QosStatus: model.StatusAvailable}
	require.NoError(t, bus.Publish(context.Background(), s, model.InfoNone))

	cancel()
	require.NoError(t, <-done)
}

func TestBuildNetwork(t *testing.T) {
	c, err := buildNetwork(config.NetworkConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &network.Fake{}, c)

	netCfg := config.Defaults().Network
	netCfg.BaseURL = "https://nef.example.com"
	c, err = buildNetwork(netCfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &network.HTTPClient{}, c)
}

func TestBuildProfiles(t *testing.T) {
	c, w, err := buildProfiles(config.ProfilesConfig{})
	require.NoError(t, err)
	assert.Nil(t, w)
	_, err = c.GetByName(context.Background(), "QOS_E")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`profiles:
  - name: QOS_X
    status: ACTIVE
    minDuration: {value: 1, unit: Seconds}
    maxDuration: {value: 1, unit: Hours}
`), 0o600))

	c, w, err = buildProfiles(config.ProfilesConfig{File: path, Watch: true})
	require.NoError(t, err)
	assert.NotNil(t, w)
	_, err = c.GetByName(context.Background(), "QOS_X")
	require.NoError(t, err)

	_, _, err = buildProfiles(config.ProfilesConfig{File: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}
