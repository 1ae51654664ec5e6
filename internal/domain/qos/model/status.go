// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// QosStatus is the caller-visible status of a session.
type QosStatus string

const (
	StatusRequested   QosStatus = "REQUESTED"
	StatusAvailable   QosStatus = "AVAILABLE"
	StatusUnavailable QosStatus = "UNAVAILABLE"
)

// StatusInfo explains why a session became unavailable.
type StatusInfo string

const (
	InfoNone              StatusInfo = ""
	InfoDurationExpired   StatusInfo = "DURATION_EXPIRED"
	InfoNetworkTerminated StatusInfo = "NETWORK_TERMINATED"
	InfoDeleteRequested   StatusInfo = "DELETE_REQUESTED"
)

// NotificationKind is the closed set of upstream event kinds the service reacts to.
type NotificationKind string

const (
	NotifyUnknown             NotificationKind = "UNKNOWN"
	NotifyAllocationSucceeded NotificationKind = "SUCCESSFUL_RESOURCES_ALLOCATION"
	NotifyAllocationFailed    NotificationKind = "FAILED_RESOURCES_ALLOCATION"
	NotifySessionTermination  NotificationKind = "SESSION_TERMINATION"
)

// ParseNotificationKind maps a raw upstream event name onto the closed set.
// Unrecognised kinds map to NotifyUnknown and are never an error.
func ParseNotificationKind(raw string) NotificationKind {
	switch NotificationKind(raw) {
	case NotifyAllocationSucceeded, NotifyAllocationFailed, NotifySessionTermination:
		return NotificationKind(raw)
	default:
		return NotifyUnknown
	}
}

// Notification is a single upstream event addressed to a subscription.
type Notification struct {
	SubscriptionID string
	Kind           NotificationKind
	Raw            string
}
