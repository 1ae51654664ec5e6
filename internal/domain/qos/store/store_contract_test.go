// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) ports.SessionStore

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) ports.SessionStore { return NewMemoryStore() },
		"sqlite": func(t *testing.T) ports.SessionStore {
			s, err := NewSqliteStore(filepath.Join(t.TempDir(), "sessions.db"))
			require.NoError(t, err)
			return s
		},
		"badger": func(t *testing.T) ports.SessionStore {
			s, err := OpenBadgerStore("")
			require.NoError(t, err)
			return s
		},
	}
}

func fixture(id, client, device, sub string) *model.QosSession {
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return &model.QosSession{
		SessionID:              id,
		SubscriptionID:         sub,
		ClientID:               client,
		Device:                 model.Device{IPv4Address: device},
		ApplicationServer:      model.ApplicationServer{IPv4Address: "203.0.113.10"},
		DevicePorts:            &model.PortsSpec{Ranges: []model.PortRange{{From: 5000, To: 5002}}},
		ApplicationServerPorts: &model.PortsSpec{Ports: []int{443}},
		QosProfile:             "QOS_E",
		QosStatus:              model.StatusAvailable,
		StartedAt:              &started,
		ExpiresAt:              started.Add(time.Minute),
		Duration:               60,
		Sink:                   "https://sink.example.com/events",
		SinkCredential: &model.SinkCredential{
			CredentialType:        model.CredentialAccessToken,
			AccessToken:           "tok",
			AccessTokenType:       "bearer",
			AccessTokenExpiresUTC: started.Add(24 * time.Hour),
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, st ports.SessionStore)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			st := factory(t)
			t.Cleanup(func() { _ = st.Close() })
			fn(t, st)
		})
	}
}

func TestStore_SaveAndFind(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st ports.SessionStore) {
		ctx := context.Background()
		rec := fixture("s1", "client-a", "198.51.100.1", "sub-1")
		require.NoError(t, st.Save(ctx, rec))

		got, err := st.FindByID(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, got)
		if diff := cmp.Diff(rec, got); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}

		bySub, err := st.FindBySubscriptionID(ctx, "sub-1")
		require.NoError(t, err)
		require.NotNil(t, bySub)
		assert.Equal(t, "s1", bySub.SessionID)

		missing, err := st.FindByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		none, err := st.FindBySubscriptionID(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}

func TestStore_IndexedLookups(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st ports.SessionStore) {
		ctx := context.Background()
		require.NoError(t, st.Save(ctx, fixture("s1", "client-a", "198.51.100.1", "sub-1")))
		require.NoError(t, st.Save(ctx, fixture("s2", "client-a", "198.51.100.2", "sub-2")))
		require.NoError(t, st.Save(ctx, fixture("s3", "client-b", "198.51.100.1", "")))

		byClient, err := st.FindByClientID(ctx, "client-a")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s2"}, ids(byClient))

		byDevice, err := st.FindByDeviceAddress(ctx, "198.51.100.1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s3"}, ids(byDevice))

		all, err := st.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestStore_DeleteReportsRemoval(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st ports.SessionStore) {
		ctx := context.Background()
		require.NoError(t, st.Save(ctx, fixture("s1", "client-a", "198.51.100.1", "sub-1")))

		removed, err := st.DeleteByID(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = st.DeleteByID(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, removed, "second delete must report nothing removed")

		bySub, err := st.FindBySubscriptionID(ctx, "sub-1")
		require.NoError(t, err)
		assert.Nil(t, bySub, "subscription lookup must not outlive the record")
	})
}

func TestStore_Update(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st ports.SessionStore) {
		ctx := context.Background()
		require.NoError(t, st.Save(ctx, fixture("s1", "client-a", "198.51.100.1", "sub-1")))

		out, err := st.Update(ctx, "s1", func(r *model.QosSession) error {
			r.ScheduledForDeletion = true
			r.SubscriptionID = "sub-9"
			return nil
		})
		require.NoError(t, err)
		assert.True(t, out.ScheduledForDeletion)

		got, err := st.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, got.ScheduledForDeletion)

		moved, err := st.FindBySubscriptionID(ctx, "sub-9")
		require.NoError(t, err)
		require.NotNil(t, moved)
		assert.Equal(t, "s1", moved.SessionID)

		abort := errors.New("abort")
		_, err = st.Update(ctx, "s1", func(r *model.QosSession) error {
			r.Duration = 999
			return abort
		})
		assert.ErrorIs(t, err, abort)
		got, err = st.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, int64(60), got.Duration, "aborted update must not persist")

		_, err = st.Update(ctx, "missing", func(*model.QosSession) error { return nil })
		assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	})
}

func TestStore_ConcurrentUpdatesSerialise(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st ports.SessionStore) {
		ctx := context.Background()
		rec := fixture("s1", "client-a", "198.51.100.1", "")
		rec.Duration = 0
		require.NoError(t, st.Save(ctx, rec))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					_, err := st.Update(ctx, "s1", func(r *model.QosSession) error {
						r.Duration++
						return nil
					})
					if err == nil {
						return
					}
					// badger reports write conflicts; retry them.
					if !isRetryable(err) {
						t.Errorf("update: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()

		got, err := st.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, int64(20), got.Duration)
	})
}

func TestStore_ReturnsCopies(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st ports.SessionStore) {
		ctx := context.Background()
		require.NoError(t, st.Save(ctx, fixture("s1", "client-a", "198.51.100.1", "")))

		got, err := st.FindByID(ctx, "s1")
		require.NoError(t, err)
		got.DevicePorts.Ranges[0].From = 1

		again, err := st.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 5000, again.DevicePorts.Ranges[0].From)
	})
}

func TestOpenSessionStore(t *testing.T) {
	st, err := OpenSessionStore("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	_, err = OpenSessionStore("sqlite", "")
	assert.Error(t, err)

	_, err = OpenSessionStore("etcd", "")
	assert.Error(t, err)
}

func ids(list []*model.QosSession) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.SessionID)
	}
	return out
}
