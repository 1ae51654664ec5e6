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

var (
	errFenced       = errors.New("session is scheduled for deletion")
	errNoTransition = errors.New("transition not allowed")
)

// HandleNotifications applies a batch of network notifications in order.
func (c *Coordinator) HandleNotifications(ctx context.Context, batch []model.Notification) error {
	var errs []error
	for _, n := range batch {
		if err := c.HandleNotification(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleNotification drives the status state machine from one network
// notification. Unknown kinds, stale subscriptions, fenced sessions and
// disallowed transitions are logged and ignored.
func (c *Coordinator) HandleNotification(ctx context.Context, n model.Notification) (err error) {
	ctx, span := telemetry.Start(ctx, "qod.notification",
		attribute.String(telemetry.SubscriptionIDKey, n.SubscriptionID),
		attribute.String(telemetry.NotifyKindKey, string(n.Kind)))
	defer func() { telemetry.End(span, err) }()

	logger := c.logger(ctx).With().
		Str(xglog.FieldSubscriptionID, n.SubscriptionID).
		Str(xglog.FieldNotifyKind, string(n.Kind)).
		Logger()

	ev, ok := lifecycle.EventFor(n.Kind)
	if !ok {
		metrics.IncNotification(string(n.Kind), "ignored")
		logger.Info().Str("raw_event", n.Raw).Msg("unhandled network notification kind")
		return nil
	}

	s, err := c.Store.FindBySubscriptionID(ctx, n.SubscriptionID)
	if err != nil {
		metrics.IncNotification(string(n.Kind), "error")
		return lifecycle.Internal(err, "load session by subscription")
	}
	if s == nil {
		metrics.IncNotification(string(n.Kind), "stale")
		logger.Debug().Msg("notification for unknown subscription")
		return nil
	}
	logger = logger.With().Str(xglog.FieldSessionID, s.SessionID).Logger()

	var applied lifecycle.Transition
	updated, err := c.Store.Update(ctx, s.SessionID, func(cur *model.QosSession) error {
		if cur.ScheduledForDeletion {
			return errFenced
		}
		tr, ok := lifecycle.TransitionFor(cur.QosStatus, ev)
		if !ok {
			return errNoTransition
		}
		lifecycle.ApplyTransition(cur, tr, c.now(), c.Config.DeletionDelay)
		applied = tr
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errFenced):
		metrics.IncNotification(string(n.Kind), "fenced")
		logger.Info().Msg("ignoring notification for session scheduled for deletion")
		return nil
	case errors.Is(err, errNoTransition):
		metrics.IncNotification(string(n.Kind), "rejected")
		logger.Warn().Str(xglog.FieldStatus, string(s.QosStatus)).Msg("notification does not apply to current status")
		return nil
	case errors.Is(err, ports.ErrSessionNotFound):
		metrics.IncNotification(string(n.Kind), "stale")
		return nil
	default:
		metrics.IncNotification(string(n.Kind), "error")
		return lifecycle.Internal(err, "apply notification")
	}

	metrics.IncNotification(string(n.Kind), "applied")
	logger.Info().
		Str(xglog.FieldEvent, "session.status_changed").
		Str(xglog.FieldOldStatus, string(applied.From)).
		Str(xglog.FieldNewStatus, string(applied.To)).
		Time(xglog.FieldExpiresAt, updated.ExpiresAt).
		Msg("qos session status changed")

	// Becoming unavailable publishes nothing yet; the event goes out when the
	// sweeper deletes the session.
	if applied.To == model.StatusAvailable {
		c.publish(ctx, updated.Clone(), model.InfoNone)
	}
	return nil
}
