// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	xglog "github.com/ManuGH/qod/internal/log"
)

// MemoryBus is an in-process event publisher for tests and local runs. Every
// subscriber receives every event while the publish context remains active.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   []chan Event
	source string
	now    func() time.Time
}

func NewMemoryBus(source string) *MemoryBus {
	return &MemoryBus{source: source, now: time.Now}
}

func (b *MemoryBus) Publish(ctx context.Context, s *model.QosSession, reason model.StatusInfo) error {
	ev := NewEvent(b.source, s, reason, b.now())
	// The read lock is held across sends so Close cannot close a channel
	// that is being written.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		case <-ctx.Done():
			dropReason := "context_done"
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				dropReason = "timeout"
			}
			recordPublish("memory", ctx.Err())
			xglog.L().Warn().
				Str(xglog.FieldSessionID, s.SessionID).
				Str(xglog.FieldReason, dropReason).
				Msg("memory bus dropped event")
			return fmt.Errorf("publish event %s: %w", ev.ID, ctx.Err())
		}
	}
	recordPublish("memory", nil)
	return nil
}

// Subscribe registers a buffered listener.
func (b *MemoryBus) Subscribe() *Subscription {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return &Subscription{b: b, ch: ch}
}

type Subscription struct {
	b    *MemoryBus
	ch   chan Event
	once sync.Once
}

func (s *Subscription) C() <-chan Event { return s.ch }

func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()
		out := s.b.subs[:0]
		for _, c := range s.b.subs {
			if c != s.ch {
				out = append(out, c)
			}
		}
		s.b.subs = out
		close(s.ch)
	})
	return nil
}

var _ ports.EventPublisher = (*MemoryBus)(nil)
