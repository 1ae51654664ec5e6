// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/lifecycle"
	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	xglog "github.com/ManuGH/qod/internal/log"
	"github.com/ManuGH/qod/internal/metrics"
	"github.com/ManuGH/qod/internal/telemetry"
)

// Extend adds duration to an available session, clamped to the profile's
// maximum. The checks run inside the store update so a concurrent sweeper
// claim is observed.
func (c *Coordinator) Extend(ctx context.Context, sessionID string, additional int64) (_ *model.QosSession, err error) {
	ctx, span := telemetry.Start(ctx, "qod.extend", telemetry.SessionAttributes(sessionID, "", "")...)
	defer func() { telemetry.End(span, err) }()
	ctx = xglog.ContextWithSessionID(ctx, sessionID)
	defer func() {
		if err != nil {
			metrics.IncSessionExtension("rejected")
		}
	}()

	if additional <= 0 {
		return nil, lifecycle.Validation(lifecycle.CodeInvalidArgument, nil, "requestedAdditionalDuration must be positive")
	}
	clientID, err := c.resolveClient(ctx)
	if err != nil {
		return nil, err
	}
	current, err := c.loadOwned(ctx, clientID, sessionID)
	if err != nil {
		return nil, err
	}

	profile, err := c.Profiles.GetByName(ctx, current.QosProfile)
	if err != nil {
		if errors.Is(err, ports.ErrProfileNotFound) {
			return nil, lifecycle.NotFound(lifecycle.CodeProfileNotFound, "qos profile %q not found", current.QosProfile)
		}
		return nil, lifecycle.Internal(err, "load qos profile")
	}
	_, maxSec, err := profile.Bounds()
	if err != nil {
		return nil, lifecycle.Internal(err, "qos profile %q bounds", profile.Name)
	}

	clamped := false
	updated, err := c.Store.Update(ctx, sessionID, func(s *model.QosSession) error {
		clamped = false
		if s.ClientID != clientID {
			return lifecycle.NotFound(lifecycle.CodeNotFound, "session %s not found", sessionID)
		}
		if err := extendable(s); err != nil {
			return err
		}
		if s.Duration >= maxSec {
			return lifecycle.OutOfRange("session %s is already at the maximum duration of %ds", sessionID, maxSec)
		}
		// Compare against the headroom so a huge request cannot overflow.
		next := maxSec
		if additional < maxSec-s.Duration {
			next = s.Duration + additional
		} else {
			clamped = additional > maxSec-s.Duration
		}
		s.Duration = next
		s.ExpiresAt = s.StartedAt.Add(time.Duration(next) * time.Second)
		return nil
	})
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return nil, lifecycle.NotFound(lifecycle.CodeNotFound, "session %s not found", sessionID)
		}
		var le *lifecycle.Error
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, lifecycle.Internal(err, "persist extension")
	}

	outcome := "extended"
	if clamped {
		outcome = "clamped"
	}
	metrics.IncSessionExtension(outcome)
	c.logger(ctx).Info().
		Str(xglog.FieldEvent, "session.extended").
		Int64("duration", updated.Duration).
		Bool("clamped", clamped).
		Time(xglog.FieldExpiresAt, updated.ExpiresAt).
		Msg("qos session extended")
	return updated, nil
}

// extendable rejects sessions that are fenced or not in the AVAILABLE state.
func extendable(s *model.QosSession) error {
	if s.ScheduledForDeletion {
		return lifecycle.Conflict(lifecycle.CodeExtensionNotAllowed, "session %s is scheduled for deletion", s.SessionID)
	}
	switch s.QosStatus {
	case model.StatusAvailable:
		if s.StartedAt == nil {
			return lifecycle.Internal(nil, "available session %s has no start time", s.SessionID)
		}
		return nil
	case model.StatusRequested:
		return lifecycle.Conflict(lifecycle.CodeSessionNotAllocated, "session %s is not yet allocated", s.SessionID)
	default:
		return lifecycle.NotFound(lifecycle.CodeNotFound, "session %s is no longer available", s.SessionID)
	}
}
