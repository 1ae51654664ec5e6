// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package identity

import (
	"context"
	"testing"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		anonymous bool
		want      string
		wantErr   error
	}{
		{"explicit id", WithClientID(context.Background(), " app-1 "), false, "app-1", nil},
		{"explicit id wins over anonymous", WithClientID(context.Background(), "app-1"), true, "app-1", nil},
		{"anonymous allowed", context.Background(), true, model.AnonymousClientID, nil},
		{"anonymous disallowed", context.Background(), false, "", ports.ErrNoIdentity},
		{"blank id counts as missing", WithClientID(context.Background(), "  "), false, "", ports.ErrNoIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolver{AllowAnonymous: tt.anonymous}.ResolveClientID(tt.ctx)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
