// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"fmt"

	"github.com/ManuGH/qod/internal/domain/qos/ports"
)

// OpenSessionStore creates a SessionStore based on the backend configuration.
func OpenSessionStore(backend, path string) (ports.SessionStore, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		return NewSqliteStore(path)
	case "badger":
		return OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
