// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api is the HTTP transport in front of the session coordinator.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/qod/internal/api/middleware"
	"github.com/ManuGH/qod/internal/domain/qos/manager"
	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Coordinator is the part of the session coordinator the transport drives.
type Coordinator interface {
	Create(ctx context.Context, req manager.CreateRequest) (*model.QosSession, error)
	Get(ctx context.Context, sessionID string) (*model.QosSession, error)
	ListByDevice(ctx context.Context, device model.Device) ([]*model.QosSession, error)
	Extend(ctx context.Context, sessionID string, additional int64) (*model.QosSession, error)
	Delete(ctx context.Context, sessionID string) error
	HandleNotifications(ctx context.Context, batch []model.Notification) error
}

// Config holds transport policy.
type Config struct {
	// MaskSensitiveData redacts conflicting session ids in error messages.
	MaskSensitiveData bool

	// RateLimitRequests per RateLimitWindow and client; 0 disables.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// TracingService names server spans; empty disables tracing.
	TracingService string
}

// Server serves the session API.
type Server struct {
	cfg    Config
	coord  Coordinator
	router *chi.Mux
}

func New(cfg Config, coord Coordinator) *Server {
	s := &Server{cfg: cfg, coord: coord}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *chi.Mux {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:     true,
		EnableLogging:     true,
		TracingService:    s.cfg.TracingService,
		RateLimitRequests: s.cfg.RateLimitRequests,
		RateLimitWindow:   s.cfg.RateLimitWindow,
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/{sessionId}", s.handleGetSession)
		r.Delete("/{sessionId}", s.handleDeleteSession)
		r.Post("/{sessionId}/extend", s.handleExtendSession)
	})
	r.Post("/retrieve-sessions", s.handleRetrieveSessions)
	r.Post("/notifications", s.handleNotifications)
	return r
}
