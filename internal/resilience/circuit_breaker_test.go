// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errTransient = errors.New("upstream timeout")

func fail() error    { return errTransient }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 3, 10*time.Second, WithClock(clock))

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(fail), errTransient)
	}
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(fail), errTransient)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open circuit must not run fn")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 10*time.Second)

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	assert.NoError(t, cb.Execute(succeed))
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))

	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())

	clock.now = clock.now.Add(11 * time.Second)
	// Failed probe re-opens.
	assert.ErrorIs(t, cb.Execute(fail), errTransient)
	assert.Equal(t, StateOpen, cb.State())

	clock.now = clock.now.Add(11 * time.Second)
	assert.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))
	_ = cb.Execute(fail)
	clock.now = clock.now.Add(11 * time.Second)

	err := cb.Execute(func() error {
		assert.Equal(t, StateHalfOpen, cb.State())
		// A concurrent caller is rejected while the probe is in flight.
		assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailureFilter(t *testing.T) {
	errRejected := errors.New("400 bad request")
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithFailureFilter(func(err error) bool {
		return errors.Is(err, errTransient)
	}))

	assert.ErrorIs(t, cb.Execute(func() error { return errRejected }), errRejected)
	assert.Equal(t, StateClosed, cb.State(), "filtered errors must not trip the breaker")

	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())
}
