// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package lock provides TTL-based named locks shared across service instances.
// A lock that is never released lapses when its TTL expires, so a crashed
// holder cannot wedge the sweep.
package lock
