// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package identity resolves the calling client of a request.
package identity

import (
	"context"
	"strings"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
)

type ctxKey struct{}

// WithClientID stores the authenticated client id on the context. The
// transport calls this after extracting the caller from its credentials.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(clientID))
}

// ClientIDFromContext returns the client id stored by WithClientID.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// Resolver implements ports.IdentityResolver. Without a client id on the
// context it falls back to the anonymous id when AllowAnonymous is set.
type Resolver struct {
	AllowAnonymous bool
}

func (r Resolver) ResolveClientID(ctx context.Context) (string, error) {
	if id := ClientIDFromContext(ctx); id != "" {
		return id, nil
	}
	if r.AllowAnonymous {
		return model.AnonymousClientID, nil
	}
	return "", ports.ErrNoIdentity
}

var _ ports.IdentityResolver = Resolver{}
