// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package notify delivers session lifecycle events to sinks.
package notify

import (
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/google/uuid"
)

const (
	EventType   = "org.camaraproject.quality-on-demand.v0.qos-status-changed"
	SpecVersion = "1.0"
	ContentType = "application/cloudevents+json"
)

// StatusChanged is the event payload.
type StatusChanged struct {
	SessionID  string           `json:"sessionId"`
	QosStatus  model.QosStatus  `json:"qosStatus"`
	StatusInfo model.StatusInfo `json:"statusInfo,omitempty"`
}

// Event is a CloudEvents structured-mode envelope.
type Event struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	Type        string        `json:"type"`
	SpecVersion string        `json:"specversion"`
	Time        time.Time     `json:"time"`
	Data        StatusChanged `json:"data"`
}

// NewEvent builds the envelope for a session snapshot.
func NewEvent(source string, s *model.QosSession, reason model.StatusInfo, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Source:      source,
		Type:        EventType,
		SpecVersion: SpecVersion,
		Time:        at.UTC(),
		Data: StatusChanged{
			SessionID:  s.SessionID,
			QosStatus:  s.QosStatus,
			StatusInfo: reason,
		},
	}
}
