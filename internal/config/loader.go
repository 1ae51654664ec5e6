// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QOD_"

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing. Keys absent
// from the file keep their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Server.ListenAddr = l.envString("LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.RateLimitRequests = l.envInt("RATE_LIMIT_REQUESTS", cfg.Server.RateLimitRequests)
	cfg.Server.ShutdownTimeout = l.envDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)

	cfg.Store.Backend = l.envString("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString("STORE_PATH", cfg.Store.Path)
	cfg.Lock.Backend = l.envString("LOCK_BACKEND", cfg.Lock.Backend)
	cfg.Lock.Path = l.envString("LOCK_PATH", cfg.Lock.Path)
	cfg.Redis.Addr = l.envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = l.envInt("REDIS_DB", cfg.Redis.DB)

	cfg.Sweep.Interval = l.envDuration("SWEEP_INTERVAL", cfg.Sweep.Interval)
	cfg.Sweep.LookAhead = l.envDuration("SWEEP_LOOKAHEAD", cfg.Sweep.LookAhead)
	cfg.Sweep.LockTTL = l.envDuration("LOCK_TTL", cfg.Sweep.LockTTL)

	cfg.Session.AsyncAllocation = l.envBool("ASYNC_ALLOCATION", cfg.Session.AsyncAllocation)
	cfg.Session.DefaultDuration = l.envInt64("DEFAULT_DURATION", cfg.Session.DefaultDuration)
	cfg.Session.DeletionDelay = l.envDuration("DELETION_DELAY", cfg.Session.DeletionDelay)
	cfg.Session.AllowAnonymous = l.envBool("ALLOW_ANONYMOUS", cfg.Session.AllowAnonymous)
	cfg.Masking.Enabled = l.envBool("MASKING_ENABLED", cfg.Masking.Enabled)

	cfg.Network.BaseURL = l.envString("NEF_BASE_URL", cfg.Network.BaseURL)
	cfg.Network.ScsAsID = l.envString("NEF_SCS_AS_ID", cfg.Network.ScsAsID)
	cfg.Network.Timeout = l.envDuration("NEF_TIMEOUT", cfg.Network.Timeout)
	cfg.Network.RateLimit = l.envFloat("NEF_RATE_LIMIT", cfg.Network.RateLimit)
	cfg.Network.BreakerThreshold = l.envInt("NEF_BREAKER_THRESHOLD", cfg.Network.BreakerThreshold)
	cfg.Network.CallbackBaseURL = l.envString("CALLBACK_BASE_URL", cfg.Network.CallbackBaseURL)

	cfg.Notify.Publishers = l.envList("PUBLISHERS", cfg.Notify.Publishers)
	cfg.Notify.RedisChannel = l.envString("REDIS_CHANNEL", cfg.Notify.RedisChannel)
	cfg.Notify.AllowPrivateSinks = l.envBool("NOTIFY_ALLOW_PRIVATE", cfg.Notify.AllowPrivateSinks)
	cfg.Notify.SinkAllowCIDRs = l.envList("NOTIFY_ALLOW_CIDRS", cfg.Notify.SinkAllowCIDRs)

	cfg.Telemetry.Exporter = l.envString("OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("OTEL_ENDPOINT", cfg.Telemetry.Endpoint)

	cfg.Profiles.File = l.envString("PROFILES_FILE", cfg.Profiles.File)
	cfg.Profiles.Watch = l.envBool("PROFILES_WATCH", cfg.Profiles.Watch)
}

// Wrapper methods record every consumed key.

func (l *Loader) consume(key string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

func (l *Loader) envString(key, def string) string {
	return ParseString(l.consume(key), def)
}

func (l *Loader) envBool(key string, def bool) bool {
	return ParseBool(l.consume(key), def)
}

func (l *Loader) envInt(key string, def int) int {
	return ParseInt(l.consume(key), def)
}

func (l *Loader) envInt64(key string, def int64) int64 {
	return ParseInt64(l.consume(key), def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	return ParseFloat(l.consume(key), def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	return ParseDuration(l.consume(key), def)
}

func (l *Loader) envList(key string, def []string) []string {
	return ParseList(l.consume(key), def)
}
