// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/ManuGH/qod/internal/config"
	"github.com/ManuGH/qod/internal/daemon"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/ManuGH/qod/internal/lock"
	xglog "github.com/ManuGH/qod/internal/log"
	"github.com/ManuGH/qod/internal/network"
	"github.com/ManuGH/qod/internal/notify"
	platnet "github.com/ManuGH/qod/internal/platform/net"
	"github.com/ManuGH/qod/internal/profile"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// closer is a named cleanup registered with the daemon in open order.
type closer struct {
	name string
	fn   func() error
}

// needsRedis reports whether any configured component talks to Redis.
func needsRedis(cfg config.AppConfig) bool {
	return cfg.Lock.Backend == "redis" || slices.Contains(cfg.Notify.Publishers, "redis")
}

func redisConfig(cfg config.AppConfig) lock.RedisConfig {
	return lock.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	}
}

// buildLocker opens the sweep lock. A shared Redis client is reused for the
// redis backend and closed by its owner.
func buildLocker(cfg config.AppConfig, rdb *redis.Client, logger zerolog.Logger) (ports.Locker, *closer, error) {
	if cfg.Lock.Backend == "redis" && rdb != nil {
		return lock.NewRedisLockerFromClient(rdb, cfg.Redis.KeyPrefix, logger), nil, nil
	}
	l, closeFn, err := lock.Open(lock.Config{
		Backend:    cfg.Lock.Backend,
		SqlitePath: cfg.Lock.Path,
		Redis:      redisConfig(cfg),
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open lock: %w", err)
	}
	return l, &closer{name: "lock", fn: closeFn}, nil
}

// buildPublisher fans lifecycle events out to every configured publisher. The
// memory bus returns a watcher that logs each event it carries.
func buildPublisher(cfg config.AppConfig, rdb *redis.Client) (ports.EventPublisher, []daemon.Watcher, error) {
	var pubs notify.Multi
	var watchers []daemon.Watcher
	for _, kind := range cfg.Notify.Publishers {
		switch kind {
		case "http":
			pubs = append(pubs, notify.NewHTTPPublisher(cfg.Notify.Source, cfg.Notify.Timeout).
				WithSinkPolicy(platnet.SinkPolicy{
					AllowPrivate: cfg.Notify.AllowPrivateSinks,
					AllowCIDRs:   cfg.Notify.SinkAllowCIDRs,
				}))
		case "redis":
			if rdb == nil {
				return nil, nil, fmt.Errorf("redis publisher requires a redis client")
			}
			pubs = append(pubs, notify.NewRedisPublisher(rdb, cfg.Notify.RedisChannel, cfg.Notify.Source))
		case "memory":
			bus := notify.NewMemoryBus(cfg.Notify.Source)
			pubs = append(pubs, bus)
			watchers = append(watchers, eventLog{sub: bus.Subscribe()})
		default:
			return nil, nil, fmt.Errorf("unknown publisher: %s", kind)
		}
	}
	switch len(pubs) {
	case 0:
		return notify.Discard{}, watchers, nil
	case 1:
		return pubs[0], watchers, nil
	}
	return pubs, watchers, nil
}

// buildNetwork returns the NEF client, or the in-process fake when no base
// URL is configured.
func buildNetwork(cfg config.NetworkConfig, logger zerolog.Logger) (ports.NetworkClient, error) {
	if cfg.BaseURL == "" {
		logger.Warn().
			Str("event", "network.fake").
			Msg("no network base URL configured, using in-process network fake")
		return network.NewFake(), nil
	}
	c, err := network.NewHTTPClient(network.Options{
		BaseURL:          cfg.BaseURL,
		ScsAsID:          cfg.ScsAsID,
		Timeout:          cfg.Timeout,
		RateLimit:        rate.Limit(cfg.RateLimit),
		RateLimitBurst:   cfg.RateLimitBurst,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerReset:     cfg.BreakerReset,
	})
	if err != nil {
		return nil, fmt.Errorf("network client: %w", err)
	}
	return c, nil
}

// buildProfiles loads the catalog file when configured. The returned watcher
// is nil unless hot reload is enabled.
func buildProfiles(cfg config.ProfilesConfig) (ports.ProfileCatalog, daemon.Watcher, error) {
	if cfg.File == "" {
		c, err := profile.NewStaticCatalog(profile.Defaults()...)
		return c, nil, err
	}
	c, err := profile.NewFileCatalog(cfg.File)
	if err != nil {
		return nil, nil, fmt.Errorf("profile catalog: %w", err)
	}
	if !cfg.Watch {
		return c, nil, nil
	}
	return c, c, nil
}

// eventLog drains a memory bus subscription into the debug log.
type eventLog struct {
	sub *notify.Subscription
}

func (e eventLog) Watch(ctx context.Context) error {
	defer func() { _ = e.sub.Close() }()
	logger := xglog.WithComponent("events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-e.sub.C():
			if !ok {
				return nil
			}
			logger.Debug().
				Str(xglog.FieldSessionID, ev.Data.SessionID).
				Str(xglog.FieldStatus, string(ev.Data.QosStatus)).
				Str(xglog.FieldReason, string(ev.Data.StatusInfo)).
				Str("event_id", ev.ID).
				Msg("lifecycle event")
		}
	}
}
