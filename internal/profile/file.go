// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package profile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	xglog "github.com/ManuGH/qod/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const debounceDuration = 300 * time.Millisecond

type fileDocument struct {
	Profiles []model.Profile `yaml:"profiles"`
}

// FileCatalog serves profiles from a YAML file. A reload that fails
// validation keeps the previous catalog.
type FileCatalog struct {
	path    string
	current atomic.Pointer[map[string]model.Profile]
	logger  zerolog.Logger

	// reloaded is signalled after every successful reload (tests).
	reloaded chan struct{}
}

// NewFileCatalog loads path and fails if it is missing or invalid.
func NewFileCatalog(path string) (*FileCatalog, error) {
	c := &FileCatalog{
		path:     path,
		logger:   xglog.WithComponent("profile"),
		reloaded: make(chan struct{}, 1),
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *FileCatalog) GetByName(_ context.Context, name string) (model.Profile, error) {
	idx := c.current.Load()
	if idx != nil {
		if p, ok := (*idx)[name]; ok {
			return p, nil
		}
	}
	return model.Profile{}, fmt.Errorf("%w: %s", ports.ErrProfileNotFound, name)
}

// Names returns the loaded profile names in sorted order.
func (c *FileCatalog) Names() []string {
	idx := c.current.Load()
	if idx == nil {
		return nil
	}
	return sortedNames(*idx)
}

// Reload re-reads the file and atomically swaps the catalog.
func (c *FileCatalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}
	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("parse profiles %s: %w", c.path, err)
	}
	idx, err := index(doc.Profiles)
	if err != nil {
		return fmt.Errorf("invalid profiles %s: %w", c.path, err)
	}
	c.current.Store(&idx)
	c.logger.Info().
		Str("event", "profile.catalog_loaded").
		Str("path", c.path).
		Int("count", len(idx)).
		Msg("profile catalog loaded")
	select {
	case c.reloaded <- struct{}{}:
	default:
	}
	return nil
}

// Watch reloads the catalog whenever the file changes until ctx is done.
// The parent directory is watched so editors that replace the file by rename
// are picked up.
func (c *FileCatalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch profiles dir: %w", err)
	}
	target := filepath.Clean(c.path)

	c.logger.Info().
		Str("event", "profile.watcher_started").
		Str("path", c.path).
		Msg("watching profile catalog for changes")

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("event", "profile.watcher_stopped").Msg("profile watcher stopped")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, func() {
				if err := c.Reload(); err != nil {
					c.logger.Error().
						Err(err).
						Str("event", "profile.reload_failed").
						Msg("profile catalog reload failed, keeping previous catalog")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error().Err(err).Str("event", "profile.watcher_error").Msg("profile watcher error")
		}
	}
}

var _ ports.ProfileCatalog = (*FileCatalog)(nil)
