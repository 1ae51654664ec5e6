// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"

	"github.com/ManuGH/qod/internal/domain/qos/lifecycle"
	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	xglog "github.com/ManuGH/qod/internal/log"
	"github.com/ManuGH/qod/internal/metrics"
	"github.com/ManuGH/qod/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Delete removes the caller's session on request.
func (c *Coordinator) Delete(ctx context.Context, sessionID string) error {
	clientID, err := c.resolveClient(ctx)
	if err != nil {
		return err
	}
	s, err := c.loadOwned(ctx, clientID, sessionID)
	if err != nil {
		return err
	}
	return c.deleteAndNotify(ctx, s, model.InfoDeleteRequested)
}

// Expire tears down a session claimed by the sweeper. A session that is
// already gone is not an error.
func (c *Coordinator) Expire(ctx context.Context, sessionID string, reason model.StatusInfo) error {
	s, err := c.Store.FindByID(ctx, sessionID)
	if err != nil {
		return lifecycle.Internal(err, "load session")
	}
	if s == nil {
		return nil
	}
	err = c.deleteAndNotify(ctx, s, reason)
	if errors.Is(err, lifecycle.ErrNotFound) {
		return nil
	}
	return err
}

// deleteAndNotify removes the record, then the upstream subscription, then
// publishes the terminal event. Only the call that actually removed the
// record performs the side effects. Local removal is final even when the
// upstream cleanup fails.
func (c *Coordinator) deleteAndNotify(ctx context.Context, s *model.QosSession, reason model.StatusInfo) (err error) {
	ctx, span := telemetry.Start(ctx, "qod.delete",
		append(telemetry.SessionAttributes(s.SessionID, s.QosProfile, string(s.QosStatus)),
			attribute.String(telemetry.ReasonKey, string(reason)))...)
	defer func() { telemetry.End(span, err) }()
	ctx = xglog.ContextWithSessionID(ctx, s.SessionID)

	logger := c.logger(ctx).With().
		Str(xglog.FieldSubscriptionID, s.SubscriptionID).
		Str(xglog.FieldReason, string(reason)).
		Logger()

	removed, err := c.Store.DeleteByID(ctx, s.SessionID)
	if err != nil {
		return lifecycle.Internal(err, "delete session")
	}
	if !removed {
		return lifecycle.NotFound(lifecycle.CodeNotFound, "session %s not found", s.SessionID)
	}
	metrics.IncSessionDeleted(string(reason))

	var upstreamErr error
	if s.SubscriptionID != "" {
		uctx, cancel := c.upstreamContext(context.WithoutCancel(ctx))
		derr := c.Network.DeleteSubscription(uctx, s.SubscriptionID)
		cancel()
		switch {
		case derr == nil:
		case errors.Is(derr, ports.ErrSubscriptionNotFound):
			logger.Info().Msg("network subscription already gone, treating as deleted")
		default:
			logger.Error().
				Err(derr).
				Str(xglog.FieldEvent, "session.upstream_delete_failed").
				Msg("session removed locally but network subscription could not be deleted")
			upstreamErr = upstreamError("delete", derr)
		}
	}

	snapshot := s.Clone()
	snapshot.QosStatus = model.StatusUnavailable
	snapshot.StatusInfo = reason
	c.publish(ctx, snapshot, reason)

	logger.Info().Str(xglog.FieldEvent, "session.deleted").Msg("qos session deleted")
	return upstreamErr
}
