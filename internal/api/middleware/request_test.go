// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/qod/internal/identity"
	xglog "github.com/ManuGH/qod/internal/log"
	"github.com/stretchr/testify/assert"
)

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen, corr string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = xglog.RequestIDFromContext(r.Context())
		corr = xglog.CorrelationIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
	assert.Empty(t, corr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	req.Header.Set(HeaderCorrelationID, "corr-1")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "corr-1", corr)
	assert.Equal(t, "corr-1", w.Header().Get(HeaderCorrelationID))
}

func TestClientID_StoresHeader(t *testing.T) {
	var got string
	h := ClientID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = identity.ClientIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderClientID, "app-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "app-1", got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, got)
}

func TestStack_RateLimitsPerClient(t *testing.T) {
	r := NewRouter(StackConfig{
		EnableMetrics:     true,
		EnableLogging:     true,
		TracingService:    "qod-test",
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
	})
	r.Get("/ping", okHandler)

	do := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(HeaderClientID, client)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do("a"))
	assert.Equal(t, http.StatusOK, do("b"))
	assert.Equal(t, http.StatusTooManyRequests, do("a"))
}
