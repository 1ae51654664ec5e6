// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/lifecycle"
	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/identity"
	"github.com/ManuGH/qod/internal/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_SyncAllocationIsAvailable(t *testing.T) {
	f := newFixture(t)

	s, err := f.coord.Create(clientCtx(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusAvailable, s.QosStatus)
	assert.Equal(t, testClient, s.ClientID)
	assert.Equal(t, int64(60), s.Duration)
	require.NotNil(t, s.StartedAt)
	assert.Equal(t, 60*time.Second, s.ExpiresAt.Sub(*s.StartedAt))
	assert.Equal(t, epoch, *s.StartedAt)
	assert.True(t, f.net.Live(s.SubscriptionID))

	req, ok := f.net.Request(s.SubscriptionID)
	require.True(t, ok)
	assert.Equal(t, "QOS_E", req.QosReference)
	assert.Equal(t, "https://qod.example.com/notifications", req.NotificationDestination)

	ev := f.nextEvent(t)
	assert.Equal(t, s.SessionID, ev.Data.SessionID)
	assert.Equal(t, model.StatusAvailable, ev.Data.QosStatus)

	stored, err := f.store.FindByID(context.Background(), s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, s, stored)
}

func TestCreate_OverlappingFlowConflicts(t *testing.T) {
	f := newFixture(t)
	first, err := f.coord.Create(clientCtx(), baseRequest())
	require.NoError(t, err)

	_, err = f.coord.Create(clientCtx(), baseRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, lifecycle.ErrConflict)

	var le *lifecycle.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, first.SessionID, le.ConflictSessionID)
	assert.Equal(t, first.ExpiresAt, le.ConflictExpiresAt)

	creates, _ := f.net.Calls()
	assert.Equal(t, 1, creates, "a conflicting create must not reach the network")
}

func TestCreate_DisjointPortsDoNotConflict(t *testing.T) {
	f := newFixture(t)

	req := baseRequest()
	req.ApplicationServerPorts = &model.PortsSpec{Ranges: []model.PortRange{{From: 5000, To: 5002}}}
	_, err := f.coord.Create(clientCtx(), req)
	require.NoError(t, err)

	req.ApplicationServerPorts = &model.PortsSpec{Ports: []int{6001}}
	_, err = f.coord.Create(clientCtx(), req)
	assert.NoError(t, err)
}

func TestCreate_DurationChecks(t *testing.T) {
	tests := []struct {
		name     string
		duration *int64
		want     error
	}{
		{"zero below minimum", int64p(0), lifecycle.ErrOutOfRange},
		{"negative", int64p(-5), lifecycle.ErrOutOfRange},
		{"above maximum", int64p(86401), lifecycle.ErrOutOfRange},
		{"minimum", int64p(10), nil},
		{"maximum", int64p(86400), nil},
		{"default", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s, err := f.coord.Create(clientCtx(), baseRequest().withDuration(tt.duration))
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				creates, _ := f.net.Calls()
				assert.Zero(t, creates)
				return
			}
			require.NoError(t, err)
			if tt.duration == nil {
				assert.Equal(t, int64(60), s.Duration)
			} else {
				assert.Equal(t, *tt.duration, s.Duration)
			}
		})
	}
}

func (r CreateRequest) withDuration(d *int64) CreateRequest {
	r.Duration = d
	return r
}

func TestCreate_ProfileChecks(t *testing.T) {
	f := newFixture(t)

	req := baseRequest()
	req.QosProfile = "QOS_UNKNOWN"
	_, err := f.coord.Create(clientCtx(), req)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	assert.Equal(t, lifecycle.CodeProfileNotFound, lifecycle.CodeOf(err))

	req.QosProfile = "QOS_RETIRED"
	_, err = f.coord.Create(clientCtx(), req)
	assert.ErrorIs(t, err, lifecycle.ErrValidation)
	assert.Equal(t, lifecycle.CodeProfileNotApplicable, lifecycle.CodeOf(err))
}

func TestCreate_ValidationFailures(t *testing.T) {
	later := epoch.Add(time.Hour)
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"bad device address", func(r *CreateRequest) { r.Device.IPv4Address = "not-an-ip" }},
		{"missing application server", func(r *CreateRequest) { r.ApplicationServer = model.ApplicationServer{} }},
		{"port out of range", func(r *CreateRequest) { r.DevicePorts = &model.PortsSpec{Ports: []int{70000}} }},
		{"relative sink", func(r *CreateRequest) { r.Sink = "/callbacks" }},
		{"credential without sink", func(r *CreateRequest) {
			r.SinkCredential = &model.SinkCredential{CredentialType: model.CredentialAccessToken}
		}},
		{"expired credential", func(r *CreateRequest) {
			r.Sink = "https://app.example.com/cb"
			r.SinkCredential = &model.SinkCredential{
				CredentialType:        model.CredentialAccessToken,
				AccessToken:           "tok",
				AccessTokenType:       "bearer",
				AccessTokenExpiresUTC: later.Add(-2 * time.Hour),
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := baseRequest()
			tt.mutate(&req)
			_, err := f.coord.Create(clientCtx(), req)
			assert.ErrorIs(t, err, lifecycle.ErrValidation)
		})
	}
}

func TestCreate_RequiresIdentity(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Create(context.Background(), baseRequest())
	assert.ErrorIs(t, err, lifecycle.ErrUnidentified)

	f.coord.Identity = identity.Resolver{AllowAnonymous: true}
	s, err := f.coord.Create(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, model.AnonymousClientID, s.ClientID)
}

func TestCreate_AsyncAllocationIsRequested(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AsyncAllocation = true })

	s, err := f.coord.Create(clientCtx(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, model.StatusRequested, s.QosStatus)
	assert.Nil(t, s.StartedAt)
	assert.Equal(t, epoch.Add(60*time.Second), s.ExpiresAt)
	f.assertNoEvent(t)
}

func TestCreate_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		omitID   bool
		want     error
		wantCode lifecycle.Code
	}{
		{
			name: "unavailable",
			err:  &network.NetworkError{Sentinel: network.ErrUnavailable, Operation: "create", Status: 503},
			want: lifecycle.ErrUpstreamUnavailable,
		},
		{
			name: "timeout",
			err:  &network.NetworkError{Sentinel: network.ErrTimeout, Operation: "create"},
			want: lifecycle.ErrUpstreamUnavailable,
		},
		{
			name: "rejected",
			err:  &network.NetworkError{Sentinel: network.ErrRejected, Operation: "create", Status: 400, Body: "bad flow"},
			want: lifecycle.ErrUpstreamRejected,
		},
		{
			name: "plain error",
			err:  errBoom,
			want: lifecycle.ErrUpstreamUnavailable,
		},
		{
			name:   "missing subscription id",
			omitID: true,
			want:   lifecycle.ErrInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.net.CreateErr = tt.err
			f.net.OmitID = tt.omitID

			_, err := f.coord.Create(clientCtx(), baseRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			all, ferr := f.store.FindAll(context.Background())
			require.NoError(t, ferr)
			assert.Empty(t, all, "a failed create must not persist a session")
		})
	}
}

func TestCreate_RejectionCarriesProviderDetail(t *testing.T) {
	f := newFixture(t)
	f.net.CreateErr = &network.NetworkError{Sentinel: network.ErrRejected, Operation: "create", Status: 400, Body: "bad flow"}

	_, err := f.coord.Create(clientCtx(), baseRequest())
	var le *lifecycle.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 400, le.UpstreamStatus)
	assert.Contains(t, le.Message, "bad flow")
}

func TestCreate_SaveFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.store.saveErr = errors.New("disk full")

	_, err := f.coord.Create(clientCtx(), baseRequest())
	assert.ErrorIs(t, err, lifecycle.ErrInternal)

	creates, deletes := f.net.Calls()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, deletes, "the orphaned subscription must be removed")
	f.assertNoEvent(t)
}
