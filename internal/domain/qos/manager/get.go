// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"

	"github.com/ManuGH/qod/internal/domain/qos/conflict"
	"github.com/ManuGH/qod/internal/domain/qos/lifecycle"
	"github.com/ManuGH/qod/internal/domain/qos/model"
)

// Get returns the caller's session.
func (c *Coordinator) Get(ctx context.Context, sessionID string) (*model.QosSession, error) {
	clientID, err := c.resolveClient(ctx)
	if err != nil {
		return nil, err
	}
	return c.loadOwned(ctx, clientID, sessionID)
}

// ListByDevice returns the caller's sessions for a device.
func (c *Coordinator) ListByDevice(ctx context.Context, device model.Device) ([]*model.QosSession, error) {
	clientID, err := c.resolveClient(ctx)
	if err != nil {
		return nil, err
	}
	addr := device.Address()
	if err := conflict.ValidateDeviceAddress(addr); err != nil {
		return nil, lifecycle.Validation(lifecycle.CodeInvalidArgument, err, "invalid device: %v", err)
	}
	all, err := c.Store.FindByDeviceAddress(ctx, addr)
	if err != nil {
		return nil, lifecycle.Internal(err, "load sessions for device")
	}
	out := make([]*model.QosSession, 0, len(all))
	for _, s := range all {
		if s.ClientID == clientID {
			out = append(out, s)
		}
	}
	return out, nil
}
