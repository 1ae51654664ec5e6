// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "time"

// AnonymousClientID is recorded when the deployment allows callers without a
// resolvable identity.
const AnonymousClientID = "anonymous"

// QosSession is the durable record of a granted (or requested) QoS session.
type QosSession struct {
	SessionID      string `json:"sessionId"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	ClientID       string `json:"clientId"`

	Device                 Device            `json:"device"`
	ApplicationServer      ApplicationServer `json:"applicationServer"`
	DevicePorts            *PortsSpec        `json:"devicePorts,omitempty"`
	ApplicationServerPorts *PortsSpec        `json:"applicationServerPorts,omitempty"`

	QosProfile string     `json:"qosProfile"`
	QosStatus  QosStatus  `json:"qosStatus"`
	StatusInfo StatusInfo `json:"statusInfo,omitempty"`

	// StartedAt is nil until the network reports the session as available.
	StartedAt *time.Time `json:"startedAt,omitempty"`
	ExpiresAt time.Time  `json:"expiresAt"`
	// Duration is the granted duration in seconds.
	Duration int64 `json:"duration"`

	// ScheduledForDeletion fences the record once the sweeper has claimed it.
	ScheduledForDeletion bool `json:"scheduledForDeletion"`

	Sink           string          `json:"sink,omitempty"`
	SinkCredential *SinkCredential `json:"sinkCredential,omitempty"`
}

// DeviceAddress is the canonical lookup key used to group sessions by device.
func (s *QosSession) DeviceAddress() string {
	return s.Device.Address()
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (s *QosSession) Clone() *QosSession {
	if s == nil {
		return nil
	}
	cp := *s
	if s.DevicePorts != nil {
		p := s.DevicePorts.Clone()
		cp.DevicePorts = &p
	}
	if s.ApplicationServerPorts != nil {
		p := s.ApplicationServerPorts.Clone()
		cp.ApplicationServerPorts = &p
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		cp.StartedAt = &t
	}
	if s.SinkCredential != nil {
		c := *s.SinkCredential
		cp.SinkCredential = &c
	}
	return &cp
}
