// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package conflict decides whether two QoS flows overlap. Everything here is
// pure; callers supply the candidate set from the session store.
package conflict

import (
	"net/netip"
	"strings"

	"github.com/ManuGH/qod/internal/domain/qos/model"
)

// Conflicts reports whether two sessions describe overlapping flows: both
// address legs must intersect and both port legs must intersect.
func Conflicts(existing, candidate *model.QosSession) bool {
	if existing == nil || candidate == nil {
		return false
	}
	if !AddressesIntersect(existing.Device.Address(), candidate.Device.Address()) {
		return false
	}
	if !AddressesIntersect(existing.ApplicationServer.Address(), candidate.ApplicationServer.Address()) {
		return false
	}
	if !PortsIntersect(existing.DevicePorts, candidate.DevicePorts) {
		return false
	}
	return PortsIntersect(existing.ApplicationServerPorts, candidate.ApplicationServerPorts)
}

// FindConflict returns the first existing session that conflicts with the candidate.
func FindConflict(existing []*model.QosSession, candidate *model.QosSession) (*model.QosSession, bool) {
	for _, s := range existing {
		if s == nil || (s.SessionID != "" && s.SessionID == candidate.SessionID) {
			continue
		}
		if Conflicts(s, candidate) {
			return s, true
		}
	}
	return nil, false
}

// AddressesIntersect reports whether two network specifications (host or CIDR)
// intersect, i.e. one contains the other. Different address families never
// intersect; unparseable input never intersects.
func AddressesIntersect(a, b string) bool {
	pa, ok := parseNetwork(a)
	if !ok {
		return false
	}
	pb, ok := parseNetwork(b)
	if !ok {
		return false
	}
	return pa.Overlaps(pb)
}

// parseNetwork treats a single host as the degenerate CIDR of that host.
func parseNetwork(raw string) (netip.Prefix, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Prefix{}, false
	}
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, false
		}
		return p.Masked(), true
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, false
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), true
}

// PortsIntersect reports whether two port specs share at least one port.
// An empty spec stands for 0-65535.
func PortsIntersect(a, b *model.PortsSpec) bool {
	na, nb := a.Normalize(), b.Normalize()

	if discreteIntersect(na.Ports, nb.Ports) {
		return true
	}
	if discreteInRanges(na.Ports, nb.Ranges) || discreteInRanges(nb.Ports, na.Ranges) {
		return true
	}
	return rangesIntersect(na.Ranges, nb.Ranges)
}

func discreteIntersect(a, b []int) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[int]struct{}, len(a))
	for _, p := range a {
		set[p] = struct{}{}
	}
	for _, p := range b {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}

func discreteInRanges(ports []int, ranges []model.PortRange) bool {
	for _, p := range ports {
		for _, r := range ranges {
			if p >= r.From && p <= r.To {
				return true
			}
		}
	}
	return false
}

func rangesIntersect(a, b []model.PortRange) bool {
	for _, ra := range a {
		for _, rb := range b {
			if ra.To >= rb.From && ra.From <= rb.To {
				return true
			}
		}
	}
	return false
}
