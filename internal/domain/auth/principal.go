package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("auth: authentication required")
	ErrNotHost         = errors.New("auth: host role required")
)

// Principal is the authenticated caller as asserted by the identity provider.
type Principal struct {
	ID     string
	IsHost bool
	Name   string
	Email  string
}

func (p Principal) Valid() bool {
	return strings.TrimSpace(p.ID) != ""
}

// RequireHost returns ErrUnauthenticated or ErrNotHost when p cannot act as a host.
func (p Principal) RequireHost() error {
	if !p.Valid() {
		return ErrUnauthenticated
	}
	if !p.IsHost {
		return ErrNotHost
	}
	return nil
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	if !ok || !p.Valid() {
		return Principal{}, false
	}
	return p, true
}
