// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"strconv"
	"strings"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
)

// flowDescription encodes a session's flow in the provider's textual form:
//
//	permit out ip from <as>[ <asPorts>] to <device>[ <devicePorts>]
//
// Ports are comma separated, ranges as from-to. An unrestricted leg carries
// no port list.
func flowDescription(s *model.QosSession) string {
	var b strings.Builder
	b.WriteString("permit out ip from ")
	b.WriteString(s.ApplicationServer.Address())
	if p := encodePorts(s.ApplicationServerPorts); p != "" {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	b.WriteString(" to ")
	b.WriteString(s.Device.Address())
	if p := encodePorts(s.DevicePorts); p != "" {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	return b.String()
}

func encodePorts(p *model.PortsSpec) string {
	if p.IsEmpty() {
		return ""
	}
	items := make([]string, 0, len(p.Ranges)+len(p.Ports))
	for _, r := range p.Ranges {
		items = append(items, strconv.Itoa(r.From)+"-"+strconv.Itoa(r.To))
	}
	for _, port := range p.Ports {
		items = append(items, strconv.Itoa(port))
	}
	return strings.Join(items, ",")
}

func flowRequest(s *model.QosSession, notificationURL string) ports.FlowRequest {
	return ports.FlowRequest{
		SessionID:               s.SessionID,
		DeviceIPv4:              s.Device.IPv4Address,
		DeviceIPv6:              s.Device.IPv6Address,
		FlowDescriptions:        []string{flowDescription(s)},
		QosReference:            s.QosProfile,
		NotificationDestination: notificationURL,
	}
}
