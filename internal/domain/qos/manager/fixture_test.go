// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/store"
	"github.com/ManuGH/qod/internal/identity"
	"github.com/ManuGH/qod/internal/lock"
	"github.com/ManuGH/qod/internal/network"
	"github.com/ManuGH/qod/internal/notify"
	"github.com/ManuGH/qod/internal/profile"
	"github.com/stretchr/testify/require"
)

const testClient = "client-a"

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// failingStore fails Save while saveErr is set, and Update or DeleteByID for
// the session ids listed in updateErr and deleteErr. The maps are set before
// any goroutine uses the store.
type failingStore struct {
	*store.MemoryStore
	saveErr   error
	updateErr map[string]error
	deleteErr map[string]error
}

func (f *failingStore) Update(ctx context.Context, id string, fn func(*model.QosSession) error) (*model.QosSession, error) {
	if err := f.updateErr[id]; err != nil {
		return nil, err
	}
	return f.MemoryStore.Update(ctx, id, fn)
}

func (f *failingStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := f.deleteErr[id]; err != nil {
		return false, err
	}
	return f.MemoryStore.DeleteByID(ctx, id)
}

func (f *failingStore) Save(ctx context.Context, s *model.QosSession) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryStore.Save(ctx, s)
}

type fixture struct {
	coord  *Coordinator
	store  *failingStore
	net    *network.Fake
	bus    *notify.MemoryBus
	events *notify.Subscription
	clock  *fakeClock
}

func testProfiles() []model.Profile {
	return []model.Profile{
		{
			Name:        "QOS_E",
			Status:      model.ProfileActive,
			MinDuration: model.Duration{Value: 10, Unit: model.UnitSeconds},
			MaxDuration: model.Duration{Value: 1, Unit: model.UnitDays},
		},
		{
			Name:        "QOS_RETIRED",
			Status:      model.ProfileInactive,
			MinDuration: model.Duration{Value: 10, Unit: model.UnitSeconds},
			MaxDuration: model.Duration{Value: 1, Unit: model.UnitHours},
		},
	}
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	catalog, err := profile.NewStaticCatalog(testProfiles()...)
	require.NoError(t, err)

	f := &fixture{
		store: &failingStore{MemoryStore: store.NewMemoryStore()},
		net:   network.NewFake(),
		bus:   notify.NewMemoryBus("urn:qod:test"),
		clock: &fakeClock{t: epoch},
	}
	f.events = f.bus.Subscribe()
	t.Cleanup(func() { _ = f.events.Close() })

	cfg := Config{
		DefaultDuration: 60,
		DeletionDelay:   5 * time.Second,
		NotificationURL: "https://qod.example.com/notifications",
		PublishTimeout:  time.Second,
		UpstreamTimeout: time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f.coord = &Coordinator{
		Store:     f.store,
		Profiles:  catalog,
		Network:   f.net,
		Publisher: f.bus,
		Identity:  identity.Resolver{},
		Config:    cfg,
		Now:       f.clock.Now,
	}
	require.NoError(t, f.coord.Validate())
	return f
}

func (f *fixture) sweeper() *Sweeper {
	return &Sweeper{
		Coord:     f.coord,
		Locker:    lock.NewMemoryLocker(),
		Scheduler: NewScheduler(),
		Conf: SweeperConfig{
			Interval:  time.Minute,
			LookAhead: 10 * time.Second,
			LockTTL:   30 * time.Second,
		},
	}
}

func clientCtx() context.Context {
	return identity.WithClientID(context.Background(), testClient)
}

func int64p(v int64) *int64 { return &v }

func baseRequest() CreateRequest {
	return CreateRequest{
		Device:            model.Device{IPv4Address: "198.51.100.1"},
		ApplicationServer: model.ApplicationServer{IPv4Address: "198.51.100.1"},
		QosProfile:        "QOS_E",
		Duration:          int64p(60),
	}
}

// nextEvent waits for one published event.
func (f *fixture) nextEvent(t *testing.T) notify.Event {
	t.Helper()
	select {
	case ev := <-f.events.C():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return notify.Event{}
	}
}

// drain waits until background deliveries are done.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.coord.Drain(ctx))
}

func (f *fixture) assertNoEvent(t *testing.T) {
	t.Helper()
	f.drain(t)
	select {
	case ev := <-f.events.C():
		t.Fatalf("unexpected event for %s: %s", ev.Data.SessionID, ev.Data.QosStatus)
	default:
	}
}

var errBoom = errors.New("boom")
