// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:        ":8080",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      15 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
		},
		Log:   LogConfig{Level: "info"},
		Store: StoreConfig{Backend: "memory"},
		Lock:  LockConfig{Backend: "memory", Key: "qod:sweep"},
		Redis: RedisConfig{Addr: "localhost:6379", KeyPrefix: "qod:lock:"},
		Sweep: SweepConfig{
			Interval:  10 * time.Second,
			LookAhead: 10 * time.Second,
			LockTTL:   5 * time.Second,
		},
		Session: SessionConfig{
			DefaultDuration: 3600,
			DeletionDelay:   5 * time.Second,
		},
		Masking: MaskingConfig{Enabled: true},
		Network: NetworkConfig{
			ScsAsID:          "qod",
			Timeout:          5 * time.Second,
			RateLimit:        50,
			RateLimitBurst:   10,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Notify: NotifyConfig{
			Publishers:   []string{"http"},
			RedisChannel: "qod.events",
			Source:       "urn:qod",
			Timeout:      5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "none",
			SamplingRate: 1.0,
		},
	}
}
