// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package profile provides the read-only QoS profile catalog.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
)

// StaticCatalog is an immutable in-memory catalog.
type StaticCatalog struct {
	byName map[string]model.Profile
}

// NewStaticCatalog validates profiles and indexes them by name.
func NewStaticCatalog(profiles ...model.Profile) (*StaticCatalog, error) {
	idx, err := index(profiles)
	if err != nil {
		return nil, err
	}
	return &StaticCatalog{byName: idx}, nil
}

func (c *StaticCatalog) GetByName(_ context.Context, name string) (model.Profile, error) {
	p, ok := c.byName[name]
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: %s", ports.ErrProfileNotFound, name)
	}
	return p, nil
}

// Names returns the catalog's profile names in sorted order.
func (c *StaticCatalog) Names() []string {
	return sortedNames(c.byName)
}

// Defaults is the catalog served when no profiles file is configured.
func Defaults() []model.Profile {
	sec := func(v int64) model.Duration { return model.Duration{Value: v, Unit: model.UnitSeconds} }
	return []model.Profile{
		{Name: "QOS_E", Description: "Low latency for real-time interaction", Status: model.ProfileActive, MinDuration: sec(1), MaxDuration: model.Duration{Value: 1, Unit: model.UnitDays}},
		{Name: "QOS_S", Description: "Small stable bandwidth", Status: model.ProfileActive, MinDuration: sec(1), MaxDuration: model.Duration{Value: 1, Unit: model.UnitDays}},
		{Name: "QOS_M", Description: "Medium stable bandwidth", Status: model.ProfileActive, MinDuration: sec(1), MaxDuration: model.Duration{Value: 1, Unit: model.UnitDays}},
		{Name: "QOS_L", Description: "Large stable bandwidth", Status: model.ProfileActive, MinDuration: sec(1), MaxDuration: model.Duration{Value: 1, Unit: model.UnitDays}},
	}
}

// Validate checks a single profile definition.
func Validate(p model.Profile) error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	switch p.Status {
	case model.ProfileActive, model.ProfileInactive, model.ProfileDeprecated:
	default:
		errs = append(errs, fmt.Errorf("unknown status %q", p.Status))
	}
	minSec, maxSec, err := p.Bounds()
	if err != nil {
		errs = append(errs, err)
	} else {
		if minSec < 0 || maxSec < 0 {
			errs = append(errs, errors.New("durations must not be negative"))
		}
		if minSec > maxSec {
			errs = append(errs, fmt.Errorf("minDuration %ds exceeds maxDuration %ds", minSec, maxSec))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("profile %q: %w", p.Name, errors.Join(errs...))
	}
	return nil
}

func index(profiles []model.Profile) (map[string]model.Profile, error) {
	idx := make(map[string]model.Profile, len(profiles))
	var errs []error
	for _, p := range profiles {
		if err := Validate(p); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := idx[p.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate profile %q", p.Name))
			continue
		}
		idx[p.Name] = p
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return idx, nil
}

func sortedNames(m map[string]model.Profile) []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

var _ ports.ProfileCatalog = (*StaticCatalog)(nil)
