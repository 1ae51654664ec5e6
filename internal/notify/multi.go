// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package notify

import (
	"context"
	"errors"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/ManuGH/qod/internal/metrics"
)

// Multi delivers to every publisher. One failing sink does not stop delivery
// to the others; their errors are joined.
type Multi []ports.EventPublisher

func (m Multi) Publish(ctx context.Context, s *model.QosSession, reason model.StatusInfo) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, s, reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, *model.QosSession, model.StatusInfo) error { return nil }

func recordPublish(sink string, err error) {
	if err != nil {
		metrics.IncPublish(sink, "error")
		return
	}
	metrics.IncPublish(sink, "ok")
}

var (
	_ ports.EventPublisher = Multi(nil)
	_ ports.EventPublisher = Discard{}
)
