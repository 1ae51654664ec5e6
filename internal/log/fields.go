// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID      = "session_id"
	FieldSubscriptionID = "subscription_id"
	FieldClientID       = "client_id"
	FieldCorrelationID  = "correlation_id"
	FieldRequestID      = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldLockKey   = "lock_key"
	FieldOwner     = "owner"

	// Lifecycle fields
	FieldStatus     = "qos_status"
	FieldOldStatus  = "old_status"
	FieldNewStatus  = "new_status"
	FieldReason     = "reason"
	FieldProfile    = "qos_profile"
	FieldExpiresAt  = "expires_at"
	FieldDevice     = "device"
	FieldNotifyKind = "notification_kind"

	// Upstream fields
	FieldOperation  = "operation"
	FieldStatusCode = "status_code"
	FieldSink       = "sink"
)
