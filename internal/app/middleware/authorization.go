package middleware

import (
	"context"

	"booking-service/internal/app/commands"
	"booking-service/internal/app/queries"
	"booking-service/internal/domain/auth"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// AuthenticatedMessage marks messages that need a principal on the context.
type AuthenticatedMessage interface {
	RequiresPrincipal() bool
}

// HostOnlyMessage marks messages restricted to hosts.
type HostOnlyMessage interface {
	RequiresHost() bool
}

// PrincipalAuthorizer checks the caller carried on the context against message markers.
type PrincipalAuthorizer struct{}

func (PrincipalAuthorizer) Authorize(ctx context.Context, message any) error {
	needPrincipal := false
	if m, ok := message.(AuthenticatedMessage); ok {
		needPrincipal = m.RequiresPrincipal()
	}
	needHost := false
	if m, ok := message.(HostOnlyMessage); ok {
		needHost = m.RequiresHost()
	}
	if !needPrincipal && !needHost {
		return nil
	}
	p, ok := auth.FromContext(ctx)
	if !ok {
		return auth.ErrUnauthenticated
	}
	if needHost {
		return p.RequireHost()
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
