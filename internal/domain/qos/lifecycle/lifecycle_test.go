// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable_Coverage(t *testing.T) {
	statuses := []model.QosStatus{model.StatusRequested, model.StatusAvailable, model.StatusUnavailable}
	events := []EventKind{EvAllocationSucceeded, EvAllocationFailed, EvNetworkTerminated}

	seen := map[string]struct{}{}
	for _, tr := range transitionsTable {
		key := fmt.Sprintf("%s+%s", tr.From, tr.Event)
		_, dup := seen[key]
		require.False(t, dup, "duplicate transition %s", key)
		seen[key] = struct{}{}
	}

	for _, st := range statuses {
		for _, ev := range events {
			_, ok := TransitionFor(st, ev)
			_, want := seen[fmt.Sprintf("%s+%s", st, ev)]
			assert.Equal(t, want, ok, "%s + %s", st, ev)
		}
	}

	for _, ev := range events {
		_, ok := TransitionFor(model.StatusUnavailable, ev)
		assert.False(t, ok, "UNAVAILABLE is terminal for %s", ev)
	}
	_, ok := TransitionFor(model.StatusAvailable, EvAllocationSucceeded)
	assert.False(t, ok)
}

func TestEventFor(t *testing.T) {
	ev, ok := EventFor(model.NotifyAllocationSucceeded)
	assert.True(t, ok)
	assert.Equal(t, EvAllocationSucceeded, ev)

	_, ok = EventFor(model.NotifyUnknown)
	assert.False(t, ok)
}

func TestApplyTransition_Available(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &model.QosSession{QosStatus: model.StatusRequested, Duration: 60}
	tr, ok := TransitionFor(model.StatusRequested, EvAllocationSucceeded)
	require.True(t, ok)

	ApplyTransition(s, tr, now, 5*time.Second)

	assert.Equal(t, model.StatusAvailable, s.QosStatus)
	require.NotNil(t, s.StartedAt)
	assert.Equal(t, now, *s.StartedAt)
	assert.Equal(t, now.Add(60*time.Second), s.ExpiresAt)
}

func TestApplyTransition_UnavailableShrinksExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &model.QosSession{QosStatus: model.StatusAvailable, Duration: 3600, ExpiresAt: now.Add(time.Hour)}
	tr, ok := TransitionFor(model.StatusAvailable, EvNetworkTerminated)
	require.True(t, ok)

	ApplyTransition(s, tr, now, 5*time.Second)

	assert.Equal(t, model.StatusUnavailable, s.QosStatus)
	assert.Equal(t, now.Add(5*time.Second), s.ExpiresAt)
	assert.Equal(t, model.InfoNetworkTerminated, s.StatusInfo)
}

func TestTerminalReason(t *testing.T) {
	assert.Equal(t, model.InfoNetworkTerminated, TerminalReason(model.StatusUnavailable))
	assert.Equal(t, model.InfoDurationExpired, TerminalReason(model.StatusAvailable))
	assert.Equal(t, model.InfoDurationExpired, TerminalReason(model.StatusRequested))
}

func TestError_ClassAndCode(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := fmt.Errorf("create: %w", OverlapConflict("sess-1", exp))

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CodeConflict, CodeOf(err))
	assert.Equal(t, ErrConflict, ClassOf(err))

	var le *Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "sess-1", le.ConflictSessionID)
	assert.Contains(t, le.Error(), "2026-03-01T12:00:00Z")
}

func TestError_ForeignErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, ErrInternal, ClassOf(err))
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := UpstreamUnavailable(0, cause, "create subscription")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, cause)
}
