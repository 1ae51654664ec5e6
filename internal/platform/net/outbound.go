// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package net holds URL helpers shared by the outbound HTTP clients.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// ErrSinkNotAllowed indicates a sink URL failed the delivery policy.
var ErrSinkNotAllowed = errors.New("sink destination not allowed")

// SinkPolicy restricts where lifecycle events may be delivered. Sinks are
// supplied by API callers, so by default they may not resolve to loopback,
// private, link-local or multicast addresses.
type SinkPolicy struct {
	// AllowPrivate disables the address check.
	AllowPrivate bool

	// AllowCIDRs are admitted even when they fall in a blocked range.
	AllowCIDRs []string

	// Resolver looks up host names; nil uses net.DefaultResolver.
	Resolver interface {
		LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	}
}

// NormalizeHost validates and normalizes a host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// Check verifies raw against the policy. Resolution happens at delivery time
// so a sink whose DNS changed after creation is still caught.
func (p SinkPolicy) Check(ctx context.Context, raw string) error {
	u, ok := ParseDirectHTTPURL(raw)
	if !ok {
		return fmt.Errorf("%w: not a direct http(s) url", ErrSinkNotAllowed)
	}
	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSinkNotAllowed, err)
	}
	if p.AllowPrivate {
		return nil
	}

	allowed, err := parseCIDRAllowlist(p.AllowCIDRs)
	if err != nil {
		return err
	}
	ips, err := p.resolve(ctx, host)
	if err != nil {
		return err
	}
	for _, ip := range ips {
		if isBlockedIP(ip) && !ipInCIDRs(ip, allowed) {
			return fmt.Errorf("%w: blocked ip %s", ErrSinkNotAllowed, ip.String())
		}
	}
	return nil
}

func (p SinkPolicy) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	resolver := p.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if addr.IP != nil {
			ips = append(ips, addr.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	return ips, nil
}

// ParseCIDRs validates an allowlist of CIDRs or bare IPs.
func ParseCIDRs(entries []string) error {
	_, err := parseCIDRAllowlist(entries)
	return err
}

func parseCIDRAllowlist(entries []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ip, ipnet, err := net.ParseCIDR(entry)
		if err == nil {
			ipnet.IP = ip
			nets = append(nets, ipnet)
			continue
		}
		ip = net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid CIDR or IP: %s", entry)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

func ipInCIDRs(ip net.IP, cidrs []*net.IPNet) bool {
	for _, n := range cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
