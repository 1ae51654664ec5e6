// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
)

var (
	// ErrProfileNotFound is returned by ProfileCatalog.GetByName.
	ErrProfileNotFound = errors.New("qos profile not found")
	// ErrSubscriptionNotFound is the benign "already deleted" upstream outcome.
	ErrSubscriptionNotFound = errors.New("network subscription not found")
	// ErrMissingSubscriptionID means the provider accepted a subscription
	// without returning a usable identifier.
	ErrMissingSubscriptionID = errors.New("network subscription id missing")
	// ErrNoIdentity means no caller identity could be resolved.
	ErrNoIdentity = errors.New("no client identity")
)

// ProfileCatalog is the read-only QoS profile lookup.
type ProfileCatalog interface {
	GetByName(ctx context.Context, name string) (model.Profile, error)
}

// FlowRequest is what the network provider needs to open a subscription.
type FlowRequest struct {
	SessionID               string
	DeviceIPv4              string
	DeviceIPv6              string
	FlowDescriptions        []string
	QosReference            string
	NotificationDestination string
}

// NetworkClient opens and tears down the upstream network subscription.
// Errors other than the sentinels above should expose the provider's status
// via StatusCoder.
type NetworkClient interface {
	CreateSubscription(ctx context.Context, req FlowRequest) (string, error)
	DeleteSubscription(ctx context.Context, subscriptionID string) error
}

// StatusCoder is implemented by upstream errors that carry a provider status.
// Unavailable distinguishes transient unreachability from definite rejection.
// Detail is the provider's message, passed through to the caller.
type StatusCoder interface {
	StatusCode() int
	Unavailable() bool
	Detail() string
}

// EventPublisher delivers a lifecycle event to the session's sink.
type EventPublisher interface {
	Publish(ctx context.Context, snapshot *model.QosSession, reason model.StatusInfo) error
}

// LockToken identifies a held lock so only its holder can release it.
type LockToken struct {
	Name      string
	Owner     string
	ExpiresAt time.Time
}

// Locker is a named, TTL-based mutual exclusion primitive shared across instances.
// TryAcquire never blocks waiting for the holder; ok=false means busy.
type Locker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (LockToken, bool, error)
	Release(ctx context.Context, token LockToken) error
}

// IdentityResolver resolves the calling client from the request context.
type IdentityResolver interface {
	ResolveClientID(ctx context.Context) (string, error)
}
