// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"
	"errors"

	"github.com/ManuGH/qod/internal/domain/qos/model"
)

// ErrSessionNotFound is returned by Update when the record does not exist.
var ErrSessionNotFound = errors.New("session record not found")

// SessionStore is the durable, shared repository of session records. Lookups
// return (nil, nil) when nothing matches. Implementations return copies.
type SessionStore interface {
	Save(ctx context.Context, s *model.QosSession) error
	FindByID(ctx context.Context, id string) (*model.QosSession, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*model.QosSession, error)
	FindByClientID(ctx context.Context, clientID string) ([]*model.QosSession, error)
	FindByDeviceAddress(ctx context.Context, address string) ([]*model.QosSession, error)
	FindAll(ctx context.Context) ([]*model.QosSession, error)

	// DeleteByID removes the record and reports whether this call removed it.
	DeleteByID(ctx context.Context, id string) (bool, error)

	// Update applies fn to the stored record as a single read-modify-write
	// against this store. fn returning an error aborts without persisting.
	Update(ctx context.Context, id string, fn func(*model.QosSession) error) (*model.QosSession, error)

	Close() error
}
