// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package manager implements the session lifecycle coordinator: creation,
// extension, deletion, the network notification state machine and the
// lock-guarded expiration sweep.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/lifecycle"
	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	xglog "github.com/ManuGH/qod/internal/log"
	"github.com/rs/zerolog"
)

// Config holds coordinator policy.
type Config struct {
	// AsyncAllocation means the network reports allocation through a later
	// notification, so new sessions start out REQUESTED.
	AsyncAllocation bool

	// DefaultDuration in seconds applies when a create request omits one.
	DefaultDuration int64

	// DeletionDelay is the grace window between a network termination and
	// the sweeper's teardown.
	DeletionDelay time.Duration

	// NotificationURL is where the network provider posts its callbacks.
	NotificationURL string

	PublishTimeout  time.Duration
	UpstreamTimeout time.Duration
}

// Coordinator orchestrates the store, profile catalog, network client and
// event publisher. Request handlers call it concurrently.
type Coordinator struct {
	Store     ports.SessionStore
	Profiles  ports.ProfileCatalog
	Network   ports.NetworkClient
	Publisher ports.EventPublisher
	Identity  ports.IdentityResolver
	Config    Config

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	publishing sync.WaitGroup
}

// Validate reports missing collaborators.
func (c *Coordinator) Validate() error {
	var errs []error
	if c.Store == nil {
		errs = append(errs, errors.New("store must be set"))
	}
	if c.Profiles == nil {
		errs = append(errs, errors.New("profile catalog must be set"))
	}
	if c.Network == nil {
		errs = append(errs, errors.New("network client must be set"))
	}
	if c.Publisher == nil {
		errs = append(errs, errors.New("event publisher must be set"))
	}
	if c.Identity == nil {
		errs = append(errs, errors.New("identity resolver must be set"))
	}
	if c.Config.DeletionDelay < 0 {
		errs = append(errs, fmt.Errorf("DeletionDelay must be >= 0, got %v", c.Config.DeletionDelay))
	}
	return errors.Join(errs...)
}

// Drain blocks until in-flight event deliveries finish or ctx is done.
func (c *Coordinator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.publishing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// now returns the current time truncated to the precision every store keeps.
func (c *Coordinator) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().UTC().Truncate(time.Millisecond)
}

func (c *Coordinator) logger(ctx context.Context) *zerolog.Logger {
	l := xglog.WithComponentFromContext(ctx, "manager")
	return &l
}

func (c *Coordinator) resolveClient(ctx context.Context) (string, error) {
	id, err := c.Identity.ResolveClientID(ctx)
	if err != nil || id == "" {
		return "", lifecycle.Unidentified()
	}
	return id, nil
}

// loadOwned returns the caller's session. Sessions owned by someone else are
// reported as not found.
func (c *Coordinator) loadOwned(ctx context.Context, clientID, sessionID string) (*model.QosSession, error) {
	s, err := c.Store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, lifecycle.Internal(err, "load session")
	}
	if s == nil || s.ClientID != clientID {
		return nil, lifecycle.NotFound(lifecycle.CodeNotFound, "session %s not found", sessionID)
	}
	return s, nil
}

func (c *Coordinator) upstreamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Config.UpstreamTimeout > 0 {
		return context.WithTimeout(ctx, c.Config.UpstreamTimeout)
	}
	return context.WithCancel(ctx)
}

// publish delivers the event in the background. Failures are logged and never
// reach the caller.
func (c *Coordinator) publish(ctx context.Context, snapshot *model.QosSession, reason model.StatusInfo) {
	pctx := context.WithoutCancel(ctx)
	logger := c.logger(ctx)
	c.publishing.Add(1)
	go func() {
		defer c.publishing.Done()
		if c.Config.PublishTimeout > 0 {
			var cancel context.CancelFunc
			pctx, cancel = context.WithTimeout(pctx, c.Config.PublishTimeout)
			defer cancel()
		}
		if err := c.Publisher.Publish(pctx, snapshot, reason); err != nil {
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "session.publish_failed").
				Str(xglog.FieldSessionID, snapshot.SessionID).
				Str(xglog.FieldStatus, string(snapshot.QosStatus)).
				Str(xglog.FieldReason, string(reason)).
				Msg("lifecycle event delivery failed")
		}
	}()
}

// upstreamError maps a network client failure onto the error taxonomy.
func upstreamError(op string, err error) error {
	if errors.Is(err, ports.ErrMissingSubscriptionID) {
		return lifecycle.Internal(err, "network provider accepted %s without a subscription id", op)
	}
	var sc ports.StatusCoder
	if errors.As(err, &sc) {
		if sc.Unavailable() {
			return lifecycle.UpstreamUnavailable(sc.StatusCode(), err, "network provider unavailable during %s", op)
		}
		detail := sc.Detail()
		if detail == "" {
			detail = fmt.Sprintf("HTTP %d", sc.StatusCode())
		}
		return lifecycle.UpstreamRejected(sc.StatusCode(), err, "network provider rejected %s: %s", op, detail)
	}
	// Timeouts and anything without a provider status count as unreachable.
	return lifecycle.UpstreamUnavailable(0, err, "network provider unavailable during %s", op)
}
