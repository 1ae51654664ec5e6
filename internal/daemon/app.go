// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon owns the long-lived runtime: the API server, the expiration
// sweeper, the deferred-deletion scheduler and optional file watchers.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	qosmanager "github.com/ManuGH/qod/internal/domain/qos/manager"
	"github.com/rs/zerolog"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Watcher is a background reloader that runs until ctx is done.
type Watcher interface {
	Watch(ctx context.Context) error
}

// AppDeps wires the runtime subsystems.
type AppDeps struct {
	Logger      zerolog.Logger
	Manager     Manager
	Coordinator *qosmanager.Coordinator

	// Sweeper and Scheduler are optional; a nil Sweeper disables expiration.
	Sweeper   *qosmanager.Sweeper
	Scheduler *qosmanager.Scheduler

	// Watchers are best-effort: a failing watcher is logged, not fatal.
	Watchers []Watcher

	// DrainTimeout bounds the wait for scheduled teardowns and event deliveries.
	DrainTimeout time.Duration
}

// App owns the runtime lifecycle and delegates server management to Manager.
type App struct {
	logger        zerolog.Logger
	manager       Manager
	coord         *qosmanager.Coordinator
	sweeper       *qosmanager.Sweeper
	scheduler     *qosmanager.Scheduler
	watchers      []Watcher
	drainTimeout  time.Duration
	shutdownHooks []namedHook
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewApp creates a new App orchestrator.
func NewApp(deps AppDeps) (*App, error) {
	if deps.Manager == nil {
		return nil, ErrMissingManager
	}
	if deps.Coordinator == nil {
		return nil, ErrMissingCoordinator
	}
	drain := deps.DrainTimeout
	if drain <= 0 {
		drain = defaultShutdownTimeout
	}
	return &App{
		logger:       deps.Logger.With().Str("component", "daemon").Logger(),
		manager:      deps.Manager,
		coord:        deps.Coordinator,
		sweeper:      deps.Sweeper,
		scheduler:    deps.Scheduler,
		watchers:     deps.Watchers,
		drainTimeout: drain,
	}, nil
}

// RegisterShutdownHook registers a cleanup function to run after the runtime
// has drained. Hooks are executed in reverse registration order (LIFO).
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.shutdownHooks = append(a.shutdownHooks, namedHook{name: name, hook: hook})
	a.logger.Debug().Str("hook", name).Msg("Registered shutdown hook")
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a fatal error occurs. Teardown runs in order: the API server
// and sweeper stop, the scheduler finishes running actions, pending event
// deliveries drain, then the shutdown hooks close backing resources.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.scheduler != nil {
		a.scheduler.Start(gctx)
	}

	if a.sweeper != nil {
		g.Go(func() error {
			return a.sweeper.Run(gctx)
		})
	}

	for _, w := range a.watchers {
		g.Go(func() error {
			if err := w.Watch(gctx); err != nil {
				a.logger.Warn().
					Err(err).
					Str("event", "watcher.failed").
					Msg("background watcher stopped with error")
			}
			return nil
		})
	}

	g.Go(func() error {
		return a.manager.Start(gctx)
	})

	runErr := g.Wait()
	return errors.Join(runErr, a.shutdown(ctx))
}

func (a *App) shutdown(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.drainTimeout)
	defer cancel()

	var errs []error
	if err := a.coord.Drain(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("drain event deliveries: %w", err))
	}

	a.logger.Debug().Int("hooks", len(a.shutdownHooks)).Msg("Executing shutdown hooks")
	for i := len(a.shutdownHooks) - 1; i >= 0; i-- {
		hook := a.shutdownHooks[i]
		hookStart := time.Now()
		if err := hook.hook(shutdownCtx); err != nil {
			a.logger.Error().
				Err(err).
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("Shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
			continue
		}
		a.logger.Debug().
			Str("hook", hook.name).
			Dur("duration", time.Since(hookStart)).
			Msg("Shutdown hook completed")
	}

	if len(errs) > 0 {
		a.logger.Error().
			Int("error_count", len(errs)).
			Msg("Shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	a.logger.Info().Msg("daemon stopped cleanly")
	return nil
}
