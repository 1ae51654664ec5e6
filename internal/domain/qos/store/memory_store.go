// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
)

// MemoryStore is an in-memory SessionStore intended for tests and single-instance runs.
// Not durable; not shared across processes.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.QosSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*model.QosSession)}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Save(ctx context.Context, s *model.QosSession) error {
	m.mu.Lock()
	m.sessions[s.SessionID] = s.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id string) (*model.QosSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id].Clone(), nil
}

func (m *MemoryStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*model.QosSession, error) {
	if subscriptionID == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.SubscriptionID == subscriptionID {
			return s.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindByClientID(ctx context.Context, clientID string) ([]*model.QosSession, error) {
	return m.filter(func(s *model.QosSession) bool { return s.ClientID == clientID }), nil
}

func (m *MemoryStore) FindByDeviceAddress(ctx context.Context, address string) ([]*model.QosSession, error) {
	address = model.CanonicalAddress(address)
	return m.filter(func(s *model.QosSession) bool { return s.DeviceAddress() == address }), nil
}

func (m *MemoryStore) FindAll(ctx context.Context) ([]*model.QosSession, error) {
	return m.filter(func(*model.QosSession) bool { return true }), nil
}

func (m *MemoryStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false, nil
	}
	delete(m.sessions, id)
	return true, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*model.QosSession) error) (*model.QosSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[id]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	m.sessions[id] = next.Clone()
	return next, nil
}

// filter returns copies ordered by session id so results are deterministic.
func (m *MemoryStore) filter(match func(*model.QosSession) bool) []*model.QosSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.QosSession
	for _, s := range m.sessions {
		if match(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

var _ ports.SessionStore = (*MemoryStore)(nil)
