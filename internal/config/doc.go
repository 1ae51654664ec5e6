// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the service configuration with the precedence
// environment over file over defaults, validates it, and renders a masked,
// dumpable view of the effective values.
package config
