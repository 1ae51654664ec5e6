// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"time"

	"github.com/ManuGH/qod/internal/identity"
	xglog "github.com/ManuGH/qod/internal/log"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	HeaderRequestID     = "X-Request-Id"
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderClientID      = "X-Client-Id"
)

// RequestID propagates or generates a request id and the CAMARA
// correlator, echoing both on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := xglog.ContextWithRequestID(r.Context(), id)
		w.Header().Set(HeaderRequestID, id)
		if corr := r.Header.Get(HeaderCorrelationID); corr != "" {
			ctx = xglog.ContextWithCorrelationID(ctx, corr)
			w.Header().Set(HeaderCorrelationID, corr)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientID stores the caller id from the X-Client-Id header on the request
// context. It stands in for extracting the client from an access token.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(HeaderClientID); id != "" {
			r = r.WithContext(identity.WithClientID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Logging writes one access log line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger := xglog.WithComponentFromContext(r.Context(), "api")
		ev := logger.Info()
		if ww.Status() >= http.StatusInternalServerError {
			ev = logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int(xglog.FieldStatusCode, ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str(xglog.FieldClientID, identity.ClientIDFromContext(r.Context())).
			Msg("http request")
	})
}
