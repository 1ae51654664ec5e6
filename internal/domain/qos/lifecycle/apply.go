// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
)

// ApplyTransition mutates s according to tr. Becoming available starts the
// clock; becoming unavailable shrinks the expiry to the deletion grace window
// so the sweeper performs the teardown.
func ApplyTransition(s *model.QosSession, tr Transition, now time.Time, deletionDelay time.Duration) {
	s.QosStatus = tr.To
	switch tr.To {
	case model.StatusAvailable:
		started := now
		s.StartedAt = &started
		s.ExpiresAt = now.Add(time.Duration(s.Duration) * time.Second)
		s.StatusInfo = model.InfoNone
	case model.StatusUnavailable:
		s.ExpiresAt = now.Add(deletionDelay)
		s.StatusInfo = model.InfoNetworkTerminated
	}
}
