// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/google/uuid"
)

var ErrInvalidTTL = errors.New("lock: ttl must be positive")

type leaseState struct {
	owner string
	exp   time.Time
}

// MemoryLocker is a process-local Locker for tests and single-instance runs.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]leaseState
	now    func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]leaseState), now: time.Now}
}

func (m *MemoryLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (ports.LockToken, bool, error) {
	if ttl <= 0 {
		return ports.LockToken{}, false, ErrInvalidTTL
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if ls, ok := m.leases[name]; ok && now.Before(ls.exp) {
		return ports.LockToken{}, false, nil
	}
	tok := ports.LockToken{Name: name, Owner: uuid.NewString(), ExpiresAt: now.Add(ttl)}
	m.leases[name] = leaseState{owner: tok.Owner, exp: tok.ExpiresAt}
	return tok, true, nil
}

func (m *MemoryLocker) Release(ctx context.Context, tok ports.LockToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ls, ok := m.leases[tok.Name]; ok && ls.owner == tok.Owner {
		delete(m.leases, tok.Name)
	}
	return nil
}

var _ ports.Locker = (*MemoryLocker)(nil)
