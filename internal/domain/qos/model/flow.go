// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"net/netip"
	"strings"
)

const (
	MinPort = 0
	MaxPort = 65535
)

// Device identifies the user equipment side of a flow.
type Device struct {
	PhoneNumber             string `json:"phoneNumber,omitempty"`
	NetworkAccessIdentifier string `json:"networkAccessIdentifier,omitempty"`
	IPv4Address             string `json:"ipv4Address,omitempty"`
	IPv6Address             string `json:"ipv6Address,omitempty"`
}

// Address returns the effective network address of the device (IPv4
// preferred), canonicalised so it can be used as a store lookup key.
func (d Device) Address() string {
	return CanonicalAddress(firstNonEmpty(d.IPv4Address, d.IPv6Address))
}

// ApplicationServer identifies the server side of a flow. Addresses may be a
// single host or a CIDR block.
type ApplicationServer struct {
	IPv4Address string `json:"ipv4Address,omitempty"`
	IPv6Address string `json:"ipv6Address,omitempty"`
}

// Address returns the effective network specification of the server.
func (a ApplicationServer) Address() string {
	return CanonicalAddress(firstNonEmpty(a.IPv4Address, a.IPv6Address))
}

// PortRange is an inclusive port interval.
type PortRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// PortsSpec restricts a flow leg to discrete ports and/or ranges. A spec with
// neither matches any port.
type PortsSpec struct {
	Ranges []PortRange `json:"ranges,omitempty"`
	Ports  []int       `json:"ports,omitempty"`
}

// IsEmpty reports whether no restriction is defined.
func (p *PortsSpec) IsEmpty() bool {
	return p == nil || (len(p.Ranges) == 0 && len(p.Ports) == 0)
}

// Normalize returns a spec in which "no ports" has become the full range.
func (p *PortsSpec) Normalize() PortsSpec {
	if p.IsEmpty() {
		return PortsSpec{Ranges: []PortRange{{From: MinPort, To: MaxPort}}}
	}
	return p.Clone()
}

// Clone returns a deep copy.
func (p PortsSpec) Clone() PortsSpec {
	out := PortsSpec{}
	if p.Ranges != nil {
		out.Ranges = append([]PortRange(nil), p.Ranges...)
	}
	if p.Ports != nil {
		out.Ports = append([]int(nil), p.Ports...)
	}
	return out
}

// CanonicalAddress normalises a host address or CIDR string. Unparseable input
// is returned trimmed so validation can reject it with the original text.
func CanonicalAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "/") {
		if p, err := netip.ParsePrefix(raw); err == nil {
			return p.Masked().String()
		}
		return raw
	}
	if a, err := netip.ParseAddr(raw); err == nil {
		return a.Unmap().String()
	}
	return raw
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
