// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/qod/internal/identity"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window
	RequestLimit int
	// WindowSize is the time window for rate limiting
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key; nil means the remote IP
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit creates a sliding window rate limiter. Rejections carry a
// Retry-After header and a problem body.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	window := cfg.WindowSize
	if window <= 0 {
		window = time.Minute
	}

	return httprate.Limit(
		cfg.RequestLimit,
		window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/problem+json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"status":429,"code":"TOO_MANY_REQUESTS","message":"Too many requests. Please try again later."}`))
		}),
	)
}

// KeyByClient keys on the resolved client id and falls back to the remote IP
// for anonymous callers.
func KeyByClient(r *http.Request) (string, error) {
	if id := identity.ClientIDFromContext(r.Context()); id != "" {
		return "client:" + id, nil
	}
	return httprate.KeyByIP(r)
}
