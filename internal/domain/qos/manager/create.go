// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/conflict"
	"github.com/ManuGH/qod/internal/domain/qos/lifecycle"
	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	xglog "github.com/ManuGH/qod/internal/log"
	"github.com/ManuGH/qod/internal/metrics"
	"github.com/ManuGH/qod/internal/telemetry"
	"github.com/google/uuid"
)

// CreateRequest describes a new session.
type CreateRequest struct {
	Device                 model.Device
	ApplicationServer      model.ApplicationServer
	DevicePorts            *model.PortsSpec
	ApplicationServerPorts *model.PortsSpec
	QosProfile             string

	// Duration in seconds; nil selects the configured default.
	Duration *int64

	Sink           string
	SinkCredential *model.SinkCredential
}

// Create grants a new session after the conflict check, the profile and
// duration checks and the upstream subscription have succeeded.
//
// The conflict check and the final save are not atomic: two concurrent
// creates for the same flow can both pass the check.
func (c *Coordinator) Create(ctx context.Context, req CreateRequest) (_ *model.QosSession, err error) {
	ctx, span := telemetry.Start(ctx, "qod.create", telemetry.SessionAttributes("", req.QosProfile, "")...)
	defer func() { telemetry.End(span, err) }()

	clientID, err := c.resolveClient(ctx)
	if err != nil {
		return nil, err
	}
	now := c.now()

	candidate := &model.QosSession{
		SessionID:              uuid.NewString(),
		ClientID:               clientID,
		Device:                 req.Device,
		ApplicationServer:      req.ApplicationServer,
		DevicePorts:            req.DevicePorts,
		ApplicationServerPorts: req.ApplicationServerPorts,
		QosProfile:             req.QosProfile,
		Sink:                   req.Sink,
		SinkCredential:         req.SinkCredential,
	}
	if err := conflict.ValidateFlow(candidate); err != nil {
		return nil, lifecycle.Validation(lifecycle.CodeInvalidArgument, err, "invalid flow: %v", err)
	}
	if err := validateSink(req.Sink, req.SinkCredential, now); err != nil {
		return nil, err
	}

	existing, err := c.Store.FindByDeviceAddress(ctx, candidate.DeviceAddress())
	if err != nil {
		return nil, lifecycle.Internal(err, "load sessions for device")
	}
	if clash, ok := conflict.FindConflict(existing, candidate); ok {
		metrics.IncSessionConflict()
		return nil, lifecycle.OverlapConflict(clash.SessionID, clash.ExpiresAt)
	}

	duration, err := c.grantedDuration(ctx, req.QosProfile, req.Duration)
	if err != nil {
		return nil, err
	}
	candidate.Duration = duration

	uctx, cancel := c.upstreamContext(ctx)
	subscriptionID, err := c.Network.CreateSubscription(uctx, flowRequest(candidate, c.Config.NotificationURL))
	cancel()
	if err == nil && subscriptionID == "" {
		err = ports.ErrMissingSubscriptionID
	}
	if err != nil {
		return nil, upstreamError("create", err)
	}
	candidate.SubscriptionID = subscriptionID

	ttl := time.Duration(duration) * time.Second
	if c.Config.AsyncAllocation {
		// Provisional expiry so an allocation that never gets acknowledged
		// is still reclaimed by the sweeper.
		candidate.QosStatus = model.StatusRequested
		candidate.ExpiresAt = now.Add(ttl)
	} else {
		started := now
		candidate.QosStatus = model.StatusAvailable
		candidate.StartedAt = &started
		candidate.ExpiresAt = now.Add(ttl)
	}

	if err := c.Store.Save(ctx, candidate); err != nil {
		c.compensate(ctx, candidate)
		return nil, lifecycle.Internal(err, "persist session")
	}

	metrics.IncSessionCreated(string(candidate.QosStatus))
	c.logger(ctx).Info().
		Str(xglog.FieldEvent, "session.created").
		Str(xglog.FieldSessionID, candidate.SessionID).
		Str(xglog.FieldSubscriptionID, candidate.SubscriptionID).
		Str(xglog.FieldClientID, clientID).
		Str(xglog.FieldProfile, candidate.QosProfile).
		Str(xglog.FieldStatus, string(candidate.QosStatus)).
		Time(xglog.FieldExpiresAt, candidate.ExpiresAt).
		Msg("qos session created")

	if candidate.QosStatus == model.StatusAvailable {
		c.publish(ctx, candidate.Clone(), model.InfoNone)
	}
	return candidate.Clone(), nil
}

// grantedDuration resolves the requested duration against the profile bounds.
func (c *Coordinator) grantedDuration(ctx context.Context, profileName string, requested *int64) (int64, error) {
	profile, err := c.Profiles.GetByName(ctx, profileName)
	if err != nil {
		if errors.Is(err, ports.ErrProfileNotFound) {
			return 0, lifecycle.NotFound(lifecycle.CodeProfileNotFound, "qos profile %q not found", profileName)
		}
		return 0, lifecycle.Internal(err, "load qos profile")
	}
	if profile.Status != model.ProfileActive {
		return 0, lifecycle.Validation(lifecycle.CodeProfileNotApplicable, nil, "qos profile %q is %s", profileName, profile.Status)
	}
	minSec, maxSec, err := profile.Bounds()
	if err != nil {
		return 0, lifecycle.Internal(err, "qos profile %q bounds", profileName)
	}

	duration := c.Config.DefaultDuration
	if requested != nil {
		duration = *requested
	}
	if duration < minSec || duration > maxSec {
		return 0, lifecycle.OutOfRange("duration %ds is outside [%d, %d] for profile %s", duration, minSec, maxSec, profileName)
	}
	return duration, nil
}

// compensate removes the upstream subscription of a session that could not be
// persisted.
func (c *Coordinator) compensate(ctx context.Context, s *model.QosSession) {
	uctx, cancel := c.upstreamContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := c.Network.DeleteSubscription(uctx, s.SubscriptionID); err != nil && !errors.Is(err, ports.ErrSubscriptionNotFound) {
		c.logger(ctx).Error().
			Err(err).
			Str(xglog.FieldEvent, "session.compensation_failed").
			Str(xglog.FieldSessionID, s.SessionID).
			Str(xglog.FieldSubscriptionID, s.SubscriptionID).
			Msg("failed to remove network subscription of unsaved session")
	}
}

func validateSink(sink string, cred *model.SinkCredential, now time.Time) error {
	if sink == "" {
		if cred != nil {
			return lifecycle.Validation(lifecycle.CodeInvalidArgument, nil, "sinkCredential requires a sink")
		}
		return nil
	}
	u, err := url.Parse(sink)
	if err != nil || !u.IsAbs() || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return lifecycle.Validation(lifecycle.CodeInvalidArgument, err, "sink must be an absolute http(s) URL")
	}
	if cred != nil && !cred.Usable(now) {
		return lifecycle.Validation(lifecycle.CodeInvalidSinkCredential, nil, "sinkCredential must be an unexpired bearer access token")
	}
	return nil
}
