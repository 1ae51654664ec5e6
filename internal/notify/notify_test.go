// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	platnet "github.com/ManuGH/qod/internal/platform/net"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleSession(sink string) *model.QosSession {
	return &model.QosSession{
		SessionID: "s-1",
		QosStatus: model.StatusUnavailable,
		Sink:      sink,
		SinkCredential: &model.SinkCredential{
			CredentialType:        model.CredentialAccessToken,
			AccessToken:           "tok",
			AccessTokenType:       "bearer",
			AccessTokenExpiresUTC: fixedNow.Add(time.Hour),
		},
	}
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent("/qod", sampleSession(""), model.InfoDeleteRequested, fixedNow)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, EventType, ev.Type)
	assert.Equal(t, "1.0", ev.SpecVersion)
	assert.Equal(t, StatusChanged{SessionID: "s-1", QosStatus: model.StatusUnavailable, StatusInfo: model.InfoDeleteRequested}, ev.Data)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"specversion":"1.0"`)
	assert.Contains(t, string(raw), `"statusInfo":"DELETE_REQUESTED"`)
}

func TestHTTPPublisher_DeliversWithBearer(t *testing.T) {
	var got Event
	var auth, ctype string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		ctype = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewHTTPPublisher("/qod", time.Second)
	p.now = func() time.Time { return fixedNow }

	require.NoError(t, p.Publish(context.Background(), sampleSession(srv.URL), model.InfoDurationExpired))
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, ContentType, ctype)
	assert.Equal(t, "s-1", got.Data.SessionID)
	assert.Equal(t, model.InfoDurationExpired, got.Data.StatusInfo)
}

func TestHTTPPublisher_ExpiredCredentialOmitsAuthorization(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	p := NewHTTPPublisher("/qod", time.Second)
	p.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	require.NoError(t, p.Publish(context.Background(), sampleSession(srv.URL), model.InfoDurationExpired))
	assert.Empty(t, auth)
}

func TestHTTPPublisher_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewHTTPPublisher("/qod", time.Second)
	err := p.Publish(context.Background(), sampleSession(srv.URL), model.InfoDurationExpired)
	assert.ErrorIs(t, err, ErrSinkRejected)

	srv.Close()
	err = p.Publish(context.Background(), sampleSession(srv.URL), model.InfoDurationExpired)
	assert.ErrorIs(t, err, ErrSinkUnavailable)
}

func TestHTTPPublisher_NoSinkIsSkipped(t *testing.T) {
	p := NewHTTPPublisher("/qod", time.Second)
	assert.NoError(t, p.Publish(context.Background(), sampleSession(""), model.InfoDurationExpired))
}

func TestHTTPPublisher_SinkPolicyBlocksLoopback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	p := NewHTTPPublisher("/qod", time.Second).WithSinkPolicy(platnet.SinkPolicy{})
	err := p.Publish(context.Background(), sampleSession(srv.URL), model.InfoDurationExpired)
	require.ErrorIs(t, err, ErrSinkBlocked)
	assert.Zero(t, hits.Load())

	p = NewHTTPPublisher("/qod", time.Second).WithSinkPolicy(platnet.SinkPolicy{AllowCIDRs: []string{"127.0.0.1"}})
	require.NoError(t, p.Publish(context.Background(), sampleSession(srv.URL), model.InfoDurationExpired))
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPPublisher_SinkPolicyChecksRedirects(t *testing.T) {
	var delivered atomic.Int32
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
	}))
	defer final.Close()

	cases := []struct {
		name    string
		target  string
		wantErr error
		wantHit int32
	}{
		{"allowed hop is followed", final.URL + "/events", nil, 1},
		{"metadata hop is refused", "http://169.254.169.254/latest/meta-data", ErrSinkBlocked, 0},
		{"ipv6 loopback hop is refused", "http://[::1]:9/events", ErrSinkBlocked, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delivered.Store(0)
			var redirects atomic.Int32
			entry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				redirects.Add(1)
				http.Redirect(w, r, tc.target, http.StatusTemporaryRedirect)
			}))
			defer entry.Close()

			p := NewHTTPPublisher("/qod", time.Second).
				WithSinkPolicy(platnet.SinkPolicy{AllowCIDRs: []string{"127.0.0.1"}})
			err := p.Publish(context.Background(), sampleSession(entry.URL), model.InfoDurationExpired)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, int32(1), redirects.Load())
			assert.Equal(t, tc.wantHit, delivered.Load())
		})
	}
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	sub := client.Subscribe(context.Background(), "qod:events")
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	p := NewRedisPublisher(client, "qod:events", "/qod")
	require.NoError(t, p.Publish(context.Background(), sampleSession(""), model.InfoNetworkTerminated))

	select {
	case msg := <-sub.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, "s-1", ev.Data.SessionID)
		assert.Equal(t, model.InfoNetworkTerminated, ev.Data.StatusInfo)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestMemoryBus(t *testing.T) {
	bus := NewMemoryBus("/qod")
	sub := bus.Subscribe()
	defer func() { _ = sub.Close() }()

	require.NoError(t, bus.Publish(context.Background(), sampleSession(""), model.InfoDeleteRequested))
	ev := <-sub.C()
	assert.Equal(t, model.InfoDeleteRequested, ev.Data.StatusInfo)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "close is idempotent")
	require.NoError(t, bus.Publish(context.Background(), sampleSession(""), model.InfoDeleteRequested))
}

func TestMemoryBus_FullSubscriberHonoursContext(t *testing.T) {
	bus := NewMemoryBus("/qod")
	sub := bus.Subscribe()
	defer func() { _ = sub.Close() }()
	for i := 0; i < cap(sub.ch); i++ {
		require.NoError(t, bus.Publish(context.Background(), sampleSession(""), model.InfoNone))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bus.Publish(ctx, sampleSession(""), model.InfoNone)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, *model.QosSession, model.StatusInfo) error {
	return f.err
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	bus := NewMemoryBus("/qod")
	sub := bus.Subscribe()
	defer func() { _ = sub.Close() }()

	boom := errors.New("boom")
	m := Multi{failingPublisher{err: boom}, bus, Discard{}}
	err := m.Publish(context.Background(), sampleSession(""), model.InfoDurationExpired)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, sub.C(), 1, "later publishers still receive the event")
}
