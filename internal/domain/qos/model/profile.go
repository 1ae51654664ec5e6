// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "fmt"

// ProfileStatus is the catalog status of a QoS profile.
type ProfileStatus string

const (
	ProfileActive     ProfileStatus = "ACTIVE"
	ProfileInactive   ProfileStatus = "INACTIVE"
	ProfileDeprecated ProfileStatus = "DEPRECATED"
)

// DurationUnit is the unit a catalog duration is expressed in.
type DurationUnit string

const (
	UnitDays         DurationUnit = "Days"
	UnitHours        DurationUnit = "Hours"
	UnitMinutes      DurationUnit = "Minutes"
	UnitSeconds      DurationUnit = "Seconds"
	UnitMilliseconds DurationUnit = "Milliseconds"
	UnitMicroseconds DurationUnit = "Microseconds"
	UnitNanoseconds  DurationUnit = "Nanoseconds"
)

// Duration is a catalog duration with an explicit unit.
type Duration struct {
	Value int64        `json:"value" yaml:"value"`
	Unit  DurationUnit `json:"unit" yaml:"unit"`
}

// Seconds normalises the duration to whole seconds, truncating sub-second units.
func (d Duration) Seconds() (int64, error) {
	switch d.Unit {
	case UnitDays:
		return d.Value * 86400, nil
	case UnitHours:
		return d.Value * 3600, nil
	case UnitMinutes:
		return d.Value * 60, nil
	case UnitSeconds:
		return d.Value, nil
	case UnitMilliseconds:
		return d.Value / 1_000, nil
	case UnitMicroseconds:
		return d.Value / 1_000_000, nil
	case UnitNanoseconds:
		return d.Value / 1_000_000_000, nil
	default:
		return 0, fmt.Errorf("unknown duration unit %q", d.Unit)
	}
}

// Profile is the subset of a QoS profile the coordinator consumes.
type Profile struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Status      ProfileStatus `json:"status" yaml:"status"`
	MinDuration Duration      `json:"minDuration" yaml:"minDuration"`
	MaxDuration Duration      `json:"maxDuration" yaml:"maxDuration"`
}

// Bounds returns the profile's min/max durations in seconds.
func (p Profile) Bounds() (minSec, maxSec int64, err error) {
	if minSec, err = p.MinDuration.Seconds(); err != nil {
		return 0, 0, fmt.Errorf("profile %s min duration: %w", p.Name, err)
	}
	if maxSec, err = p.MaxDuration.Seconds(); err != nil {
		return 0, 0, fmt.Errorf("profile %s max duration: %w", p.Name, err)
	}
	return minSec, maxSec, nil
}
