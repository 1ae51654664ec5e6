// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ManuGH/qod/internal/domain/qos/model"
)

// ErrMalformedNotification is returned for callback bodies that cannot be decoded.
var ErrMalformedNotification = errors.New("network: malformed notification")

type eventReport struct {
	Event string `json:"event"`
}

// userPlaneNotification is the provider's callback body. Transaction is the
// subscription resource link and ends in the subscription id.
type userPlaneNotification struct {
	Transaction  string        `json:"transaction"`
	EventReports []eventReport `json:"eventReports"`
}

// DecodeNotification parses a provider callback into one notification per
// event report. Unrecognised events decode as model.NotifyUnknown.
func DecodeNotification(r io.Reader) ([]model.Notification, error) {
	var body userPlaneNotification
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	id := subscriptionIDFrom(body.Transaction)
	if id == "" {
		return nil, fmt.Errorf("%w: missing transaction", ErrMalformedNotification)
	}
	out := make([]model.Notification, 0, len(body.EventReports))
	for _, ev := range body.EventReports {
		out = append(out, model.Notification{
			SubscriptionID: id,
			Kind:           model.ParseNotificationKind(ev.Event),
			Raw:            ev.Event,
		})
	}
	return out, nil
}
