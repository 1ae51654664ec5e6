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

// DefaultSweepLockKey is the lock every instance competes for.
const DefaultSweepLockKey = "qod:sweep"

var errNotClaimable = errors.New("session no longer claimable")

// SweeperConfig defines the sweep cadence and horizon.
type SweeperConfig struct {
	Interval  time.Duration
	LookAhead time.Duration // claim sessions expiring within this window
	LockTTL   time.Duration // must be shorter than Interval
	LockKey   string
}

// Sweeper claims expiring sessions under the distributed lock and hands their
// teardown to the scheduler, so no upstream I/O runs while the lock is held.
type Sweeper struct {
	Coord     *Coordinator
	Locker    ports.Locker
	Scheduler *Scheduler
	Conf      SweeperConfig
}

// Run performs a pass immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.Conf.Interval <= 0 {
		return errors.New("sweeper: Interval must be > 0")
	}
	ticker := time.NewTicker(s.Conf.Interval)
	defer ticker.Stop()

	logger := xglog.WithComponent("sweeper")
	logger.Info().
		Dur("interval", s.Conf.Interval).
		Dur("look_ahead", s.Conf.LookAhead).
		Msg("expiration sweeper started")

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("sweep cycle failed")
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("expiration sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce performs exactly one pass and returns the number of sessions it
// claimed. A busy lock skips the pass without error.
func (s *Sweeper) SweepOnce(ctx context.Context) (claimed int, err error) {
	key := s.Conf.LockKey
	if key == "" {
		key = DefaultSweepLockKey
	}
	logger := xglog.WithComponentFromContext(ctx, "sweeper").With().Str(xglog.FieldLockKey, key).Logger()

	token, ok, err := s.Locker.TryAcquire(ctx, key, s.Conf.LockTTL)
	if err != nil {
		metrics.IncSweepCycle("error")
		return 0, err
	}
	if !ok {
		metrics.IncSweepCycle("skipped")
		logger.Debug().Msg("sweep lock held elsewhere, skipping cycle")
		return 0, nil
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := s.Locker.Release(rctx, token); rerr != nil {
			logger.Warn().Err(rerr).Msg("failed to release sweep lock, it will lapse with its TTL")
		}
	}()

	ctx, span := telemetry.Start(ctx, "qod.sweep")
	candidates := 0
	defer func() {
		span.SetAttributes(telemetry.SweepAttributes(candidates, claimed)...)
		telemetry.End(span, err)
	}()

	all, err := s.Store().FindAll(ctx)
	if err != nil {
		metrics.IncSweepCycle("error")
		return 0, err
	}

	now := s.Coord.now()
	for _, sess := range all {
		if !claimable(sess, now, s.Conf.LookAhead) {
			continue
		}
		candidates++
		if s.claim(ctx, sess.SessionID, now) {
			claimed++
		}
	}

	metrics.IncSweepCycle("ran")
	metrics.AddSweepClaimed(claimed)
	if claimed > 0 {
		logger.Info().Int("claimed", claimed).Msg("sessions claimed for deletion")
	}
	return claimed, nil
}

// Store is the coordinator's session store.
func (s *Sweeper) Store() ports.SessionStore {
	return s.Coord.Store
}

// claimable selects sessions expiring within the horizon that are not yet
// fenced, and fenced sessions already past expiry whose deferred deletion was
// lost.
func claimable(sess *model.QosSession, now time.Time, lookAhead time.Duration) bool {
	if sess.ScheduledForDeletion {
		return !sess.ExpiresAt.After(now)
	}
	return !sess.ExpiresAt.After(now.Add(lookAhead))
}

// claim fences one session and arms its deletion. Failures are logged and do
// not affect other sessions.
func (s *Sweeper) claim(ctx context.Context, sessionID string, now time.Time) bool {
	logger := xglog.WithComponentFromContext(ctx, "sweeper").With().Str(xglog.FieldSessionID, sessionID).Logger()

	var reason model.StatusInfo
	fenced, err := s.Store().Update(ctx, sessionID, func(cur *model.QosSession) error {
		if !claimable(cur, now, s.Conf.LookAhead) {
			return errNotClaimable
		}
		cur.ScheduledForDeletion = true
		reason = lifecycle.TerminalReason(cur.QosStatus)
		return nil
	})
	if err != nil {
		if !errors.Is(err, errNotClaimable) && !errors.Is(err, ports.ErrSessionNotFound) {
			logger.Warn().Err(err).Msg("failed to claim session")
		}
		return false
	}

	at := fenced.ExpiresAt
	if at.Before(now) {
		at = now
	}
	coord := s.Coord
	armed := s.Scheduler.Schedule(sessionID, at, func(fireCtx context.Context) {
		if err := coord.Expire(fireCtx, sessionID, reason); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldReason, string(reason)).Msg("deferred deletion failed")
		}
	})
	logger.Debug().
		Time(xglog.FieldExpiresAt, at).
		Str(xglog.FieldReason, string(reason)).
		Bool("armed", armed).
		Msg("session claimed for deletion")
	return true
}
