// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"strings"
	"time"
)

// AppConfig is the effective service configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Lock      LockConfig      `yaml:"lock"`
	Redis     RedisConfig     `yaml:"redis"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Session   SessionConfig   `yaml:"session"`
	Masking   MaskingConfig   `yaml:"masking"`
	Network   NetworkConfig   `yaml:"network"`
	Notify    NotifyConfig    `yaml:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Profiles  ProfilesConfig  `yaml:"profiles"`
}

type ServerConfig struct {
	ListenAddr        string        `yaml:"listenAddr"`
	ReadTimeout       time.Duration `yaml:"readTimeout"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	RateLimitRequests int           `yaml:"rateLimitRequests"`
	RateLimitWindow   time.Duration `yaml:"rateLimitWindow"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig selects the session store backend: memory, sqlite or badger.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// LockConfig selects the sweep lock backend: memory, redis or sqlite.
type LockConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Key     string `yaml:"key"`
}

// RedisConfig is shared by the redis lock and the redis publisher.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type SweepConfig struct {
	Interval  time.Duration `yaml:"interval"`
	LookAhead time.Duration `yaml:"lookAhead"`
	LockTTL   time.Duration `yaml:"lockTTL"`
}

type SessionConfig struct {
	AsyncAllocation bool          `yaml:"asyncAllocation"`
	DefaultDuration int64         `yaml:"defaultDuration"` // seconds
	DeletionDelay   time.Duration `yaml:"deletionDelay"`
	AllowAnonymous  bool          `yaml:"allowAnonymous"`
}

type MaskingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NetworkConfig points at the network exposure function. An empty BaseURL
// runs against the in-process fake.
type NetworkConfig struct {
	BaseURL          string        `yaml:"baseURL"`
	ScsAsID          string        `yaml:"scsAsId"`
	Timeout          time.Duration `yaml:"timeout"`
	RateLimit        float64       `yaml:"rateLimit"` // requests per second, 0 disables
	RateLimitBurst   int           `yaml:"rateLimitBurst"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
	// CallbackBaseURL is this service's public base; the provider posts to
	// CallbackBaseURL + "/notifications".
	CallbackBaseURL string `yaml:"callbackBaseURL"`
}

// NotifyConfig selects the lifecycle event publishers: http, redis, memory.
type NotifyConfig struct {
	Publishers   []string      `yaml:"publishers"`
	RedisChannel string        `yaml:"redisChannel"`
	Source       string        `yaml:"source"`
	Timeout      time.Duration `yaml:"timeout"`

	// AllowPrivateSinks lets HTTP sinks resolve to loopback or private
	// addresses. SinkAllowCIDRs admits specific ranges without it.
	AllowPrivateSinks bool     `yaml:"allowPrivateSinks"`
	SinkAllowCIDRs    []string `yaml:"sinkAllowCIDRs"`
}

type TelemetryConfig struct {
	Exporter     string  `yaml:"exporter"` // none, grpc or http
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// ProfilesConfig points at the profile catalog file. Empty uses the built-in
// catalog.
type ProfilesConfig struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

// NotificationURL is where the network provider sends its callbacks.
func (c AppConfig) NotificationURL() string {
	if c.Network.CallbackBaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.Network.CallbackBaseURL, "/") + "/notifications"
}
