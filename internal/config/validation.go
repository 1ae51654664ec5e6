// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"slices"

	platnet "github.com/ManuGH/qod/internal/platform/net"
)

// ValidationError reports one invalid field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// Validate checks the whole configuration and returns every problem found.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(field string, value any, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Server.ListenAddr == "" {
		add("server.listenAddr", cfg.Server.ListenAddr, "must be set")
	}
	if cfg.Server.RateLimitRequests < 0 {
		add("server.rateLimitRequests", cfg.Server.RateLimitRequests, "must be >= 0")
	}

	switch cfg.Store.Backend {
	case "memory":
	case "sqlite", "badger":
		if cfg.Store.Path == "" {
			add("store.path", cfg.Store.Path, "required for the %s backend", cfg.Store.Backend)
		}
	default:
		add("store.backend", cfg.Store.Backend, "must be memory, sqlite or badger")
	}

	switch cfg.Lock.Backend {
	case "memory":
	case "sqlite":
		if cfg.Lock.Path == "" {
			add("lock.path", cfg.Lock.Path, "required for the sqlite backend")
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			add("redis.addr", cfg.Redis.Addr, "required for the redis lock backend")
		}
	default:
		add("lock.backend", cfg.Lock.Backend, "must be memory, redis or sqlite")
	}

	if cfg.Sweep.Interval <= 0 {
		add("sweep.interval", cfg.Sweep.Interval, "must be > 0")
	}
	if cfg.Sweep.LookAhead < 0 {
		add("sweep.lookAhead", cfg.Sweep.LookAhead, "must be >= 0")
	}
	if cfg.Sweep.LockTTL <= 0 || cfg.Sweep.LockTTL >= cfg.Sweep.Interval {
		add("sweep.lockTTL", cfg.Sweep.LockTTL, "must be > 0 and shorter than sweep.interval (%v)", cfg.Sweep.Interval)
	}

	if cfg.Session.DefaultDuration <= 0 {
		add("session.defaultDuration", cfg.Session.DefaultDuration, "must be > 0 seconds")
	}
	if cfg.Session.DeletionDelay < 0 {
		add("session.deletionDelay", cfg.Session.DeletionDelay, "must be >= 0")
	}

	if cfg.Network.BaseURL != "" {
		if !isHTTPURL(cfg.Network.BaseURL) {
			add("network.baseURL", cfg.Network.BaseURL, "must be an absolute http(s) URL")
		}
		if cfg.Network.CallbackBaseURL == "" {
			add("network.callbackBaseURL", cfg.Network.CallbackBaseURL, "required when network.baseURL is set")
		}
	}
	if cfg.Network.CallbackBaseURL != "" && !isHTTPURL(cfg.Network.CallbackBaseURL) {
		add("network.callbackBaseURL", cfg.Network.CallbackBaseURL, "must be an absolute http(s) URL")
	}
	if cfg.Network.Timeout <= 0 {
		add("network.timeout", cfg.Network.Timeout, "must be > 0")
	}
	if cfg.Network.RateLimit < 0 {
		add("network.rateLimit", cfg.Network.RateLimit, "must be >= 0")
	}

	for _, p := range cfg.Notify.Publishers {
		if !slices.Contains([]string{"http", "redis", "memory"}, p) {
			add("notify.publishers", p, "must be http, redis or memory")
		}
		if p == "redis" && cfg.Redis.Addr == "" {
			add("redis.addr", cfg.Redis.Addr, "required for the redis publisher")
		}
	}

	if err := platnet.ParseCIDRs(cfg.Notify.SinkAllowCIDRs); err != nil {
		add("notify.sinkAllowCIDRs", cfg.Notify.SinkAllowCIDRs, err.Error())
	}

	switch cfg.Telemetry.Exporter {
	case "none", "grpc", "http":
	default:
		add("telemetry.exporter", cfg.Telemetry.Exporter, "must be none, grpc or http")
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		add("telemetry.samplingRate", cfg.Telemetry.SamplingRate, "must be within [0, 1]")
	}

	return errors.Join(errs...)
}

func isHTTPURL(raw string) bool {
	_, ok := platnet.ParseDirectHTTPURL(raw)
	return ok
}
