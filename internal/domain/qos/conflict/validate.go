// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package conflict

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/ManuGH/qod/internal/domain/qos/model"
)

var (
	ErrInvalidPort    = errors.New("port out of bounds")
	ErrInvalidRange   = errors.New("malformed port range")
	ErrInvalidAddress = errors.New("invalid network address")
	ErrMissingAddress = errors.New("missing network address")
)

// ValidatePorts rejects out-of-bounds ports and ranges with from > to.
// A nil spec is valid and means "any port".
func ValidatePorts(p *model.PortsSpec) error {
	if p == nil {
		return nil
	}
	for _, port := range p.Ports {
		if port < model.MinPort || port > model.MaxPort {
			return fmt.Errorf("%w: %d", ErrInvalidPort, port)
		}
	}
	for _, r := range p.Ranges {
		if r.From < model.MinPort || r.From > model.MaxPort || r.To < model.MinPort || r.To > model.MaxPort {
			return fmt.Errorf("%w: %d-%d", ErrInvalidPort, r.From, r.To)
		}
		if r.From > r.To {
			return fmt.Errorf("%w: %d-%d", ErrInvalidRange, r.From, r.To)
		}
	}
	return nil
}

// ValidateAddress accepts a single host address or a CIDR block.
func ValidateAddress(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrMissingAddress
	}
	if strings.Contains(raw, "/") {
		if _, err := netip.ParsePrefix(raw); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
		}
		return nil
	}
	if _, err := netip.ParseAddr(raw); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	return nil
}

// ValidateDeviceAddress additionally requires the device to be a single host.
func ValidateDeviceAddress(raw string) error {
	if err := ValidateAddress(raw); err != nil {
		return err
	}
	if strings.Contains(raw, "/") {
		return fmt.Errorf("%w: device must be a single host, got %q", ErrInvalidAddress, raw)
	}
	return nil
}

// ValidateFlow checks every address and port leg of a candidate session.
func ValidateFlow(s *model.QosSession) error {
	if err := ValidateDeviceAddress(s.Device.Address()); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if err := ValidateAddress(s.ApplicationServer.Address()); err != nil {
		return fmt.Errorf("applicationServer: %w", err)
	}
	if err := ValidatePorts(s.DevicePorts); err != nil {
		return fmt.Errorf("devicePorts: %w", err)
	}
	if err := ValidatePorts(s.ApplicationServerPorts); err != nil {
		return fmt.Errorf("applicationServerPorts: %w", err)
	}
	return nil
}
