// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/google/uuid"
)

// Fake is an in-process provider for local runs and tests. It keeps the set of
// live subscriptions and counts calls.
type Fake struct {
	mu      sync.Mutex
	subs    map[string]ports.FlowRequest
	creates int
	deletes int

	// CreateErr / DeleteErr are returned by the next calls when set.
	CreateErr error
	DeleteErr error
	// OmitID simulates a provider that answers without an id.
	OmitID bool
}

func NewFake() *Fake {
	return &Fake{subs: make(map[string]ports.FlowRequest)}
}

func (f *Fake) CreateSubscription(ctx context.Context, req ports.FlowRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if f.OmitID {
		return "", nil
	}
	id := fmt.Sprintf("sub-%s", uuid.NewString())
	f.subs[id] = req
	return id, nil
}

func (f *Fake) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.subs[subscriptionID]; !ok {
		return ports.ErrSubscriptionNotFound
	}
	delete(f.subs, subscriptionID)
	return nil
}

// Calls returns the number of create and delete calls so far.
func (f *Fake) Calls() (creates, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.deletes
}

// Live reports whether the subscription is still open.
func (f *Fake) Live(subscriptionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[subscriptionID]
	return ok
}

// Request returns the flow request a live subscription was opened with.
func (f *Fake) Request(subscriptionID string) (ports.FlowRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.subs[subscriptionID]
	return r, ok
}

var _ ports.NetworkClient = (*Fake)(nil)
