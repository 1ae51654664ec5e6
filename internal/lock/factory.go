// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lock

import (
	"fmt"

	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/rs/zerolog"
)

// Config selects and configures a lock backend.
type Config struct {
	Backend    string // memory, redis or sqlite
	SqlitePath string
	Redis      RedisConfig
}

// Open creates a Locker for the configured backend. The returned close func
// releases backend resources and is never nil.
func Open(cfg Config, logger zerolog.Logger) (ports.Locker, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryLocker(), noop, nil
	case "redis":
		l, err := NewRedisLocker(cfg.Redis, logger)
		if err != nil {
			return nil, noop, err
		}
		return l, l.Close, nil
	case "sqlite":
		if cfg.SqlitePath == "" {
			return nil, noop, fmt.Errorf("sqlite lock backend requires a path")
		}
		l, err := NewSqliteLocker(cfg.SqlitePath)
		if err != nil {
			return nil, noop, err
		}
		return l, l.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown lock backend: %s", cfg.Backend)
	}
}
