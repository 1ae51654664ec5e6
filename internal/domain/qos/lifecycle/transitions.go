// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/qod/internal/domain/qos/model"

// EventKind is an input to the status state machine.
type EventKind string

const (
	EvAllocationSucceeded EventKind = "allocation_succeeded"
	EvAllocationFailed    EventKind = "allocation_failed"
	EvNetworkTerminated   EventKind = "network_terminated"
)

// Transition is a single allowed edge in the status state machine.
type Transition struct {
	From  model.QosStatus
	To    model.QosStatus
	Event EventKind
}

var transitionsTable = []Transition{
	{From: model.StatusRequested, To: model.StatusAvailable, Event: EvAllocationSucceeded},

	{From: model.StatusRequested, To: model.StatusUnavailable, Event: EvAllocationFailed},
	{From: model.StatusRequested, To: model.StatusUnavailable, Event: EvNetworkTerminated},
	{From: model.StatusAvailable, To: model.StatusUnavailable, Event: EvAllocationFailed},
	{From: model.StatusAvailable, To: model.StatusUnavailable, Event: EvNetworkTerminated},
}

// TransitionFor returns the allowed transition for a given status+event.
func TransitionFor(from model.QosStatus, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// EventFor maps an upstream notification onto a state machine event.
// Unknown kinds have no event.
func EventFor(kind model.NotificationKind) (EventKind, bool) {
	switch kind {
	case model.NotifyAllocationSucceeded:
		return EvAllocationSucceeded, true
	case model.NotifyAllocationFailed:
		return EvAllocationFailed, true
	case model.NotifySessionTermination:
		return EvNetworkTerminated, true
	default:
		return "", false
	}
}

// TerminalReason is the reason published when a claimed session is deleted
// by the sweeper, derived from the status recorded at claim time.
func TerminalReason(status model.QosStatus) model.StatusInfo {
	if status == model.StatusUnavailable {
		return model.InfoNetworkTerminated
	}
	return model.InfoDurationExpired
}
