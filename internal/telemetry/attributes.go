// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by coordinator spans.
const (
	SessionIDKey      = "qod.session_id"
	SubscriptionIDKey = "qod.subscription_id"
	ProfileKey        = "qod.qos_profile"
	StatusKey         = "qod.qos_status"
	ReasonKey         = "qod.reason"
	NotifyKindKey     = "qod.notification_kind"
	SweepCandidates   = "qod.sweep.candidates"
	SweepClaimed      = "qod.sweep.claimed"
	ErrorCodeKey      = "qod.error_code"
)

// SessionAttributes creates span attributes describing a session. Empty
// values are omitted.
func SessionAttributes(sessionID, profile, status string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if profile != "" {
		attrs = append(attrs, attribute.String(ProfileKey, profile))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(StatusKey, status))
	}
	return attrs
}

// SweepAttributes describes the result of one sweep pass.
func SweepAttributes(candidates, claimed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(SweepCandidates, candidates),
		attribute.Int(SweepClaimed, claimed),
	}
}
