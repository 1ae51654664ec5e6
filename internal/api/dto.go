// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/manager"
	"github.com/ManuGH/qod/internal/domain/qos/model"
)

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Device                 model.Device            `json:"device"`
	ApplicationServer      model.ApplicationServer `json:"applicationServer"`
	DevicePorts            *model.PortsSpec        `json:"devicePorts,omitempty"`
	ApplicationServerPorts *model.PortsSpec        `json:"applicationServerPorts,omitempty"`
	QosProfile             string                  `json:"qosProfile"`
	Duration               *int64                  `json:"duration,omitempty"`
	Sink                   string                  `json:"sink,omitempty"`
	SinkCredential         *model.SinkCredential   `json:"sinkCredential,omitempty"`
}

func (r CreateSessionRequest) toManager() manager.CreateRequest {
	return manager.CreateRequest{
		Device:                 r.Device,
		ApplicationServer:      r.ApplicationServer,
		DevicePorts:            r.DevicePorts,
		ApplicationServerPorts: r.ApplicationServerPorts,
		QosProfile:             r.QosProfile,
		Duration:               r.Duration,
		Sink:                   r.Sink,
		SinkCredential:         r.SinkCredential,
	}
}

// ExtendSessionRequest is the body of POST /sessions/{id}/extend.
type ExtendSessionRequest struct {
	RequestedAdditionalDuration int64 `json:"requestedAdditionalDuration"`
}

// RetrieveSessionsRequest is the body of POST /retrieve-sessions.
type RetrieveSessionsRequest struct {
	Device model.Device `json:"device"`
}

// SessionInfo is the public view of a session. Client ids, subscription ids
// and sink credentials stay internal.
type SessionInfo struct {
	SessionID              string                  `json:"sessionId"`
	Device                 model.Device            `json:"device"`
	ApplicationServer      model.ApplicationServer `json:"applicationServer"`
	DevicePorts            *model.PortsSpec        `json:"devicePorts,omitempty"`
	ApplicationServerPorts *model.PortsSpec        `json:"applicationServerPorts,omitempty"`
	QosProfile             string                  `json:"qosProfile"`
	Sink                   string                  `json:"sink,omitempty"`
	Duration               int64                   `json:"duration"`
	StartedAt              *time.Time              `json:"startedAt,omitempty"`
	ExpiresAt              time.Time               `json:"expiresAt"`
	QosStatus              model.QosStatus         `json:"qosStatus"`
	StatusInfo             model.StatusInfo        `json:"statusInfo,omitempty"`
}

func sessionInfo(s *model.QosSession) SessionInfo {
	return SessionInfo{
		SessionID:              s.SessionID,
		Device:                 s.Device,
		ApplicationServer:      s.ApplicationServer,
		DevicePorts:            s.DevicePorts,
		ApplicationServerPorts: s.ApplicationServerPorts,
		QosProfile:             s.QosProfile,
		Sink:                   s.Sink,
		Duration:               s.Duration,
		StartedAt:              s.StartedAt,
		ExpiresAt:              s.ExpiresAt,
		QosStatus:              s.QosStatus,
		StatusInfo:             s.StatusInfo,
	}
}
