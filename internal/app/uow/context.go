package uow

import (
	"context"
	"errors"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

// ContextWithUnitOfWork stores the provided unit of work in context.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext retrieves a unit of work from context if present.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	val := ctx.Value(ctxKey{})
	if val == nil {
		return nil, false
	}
	unit, ok := val.(UnitOfWork)
	return unit, ok
}

// Begin starts a unit and returns the context repositories must use.
// Units that need the context decorated (e.g. with a database session) implement InjectContext.
func Begin(ctx context.Context, factory UoWFactory, opts TxOptions) (UnitOfWork, context.Context, error) {
	if factory == nil {
		return nil, ctx, ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	return unit, ContextWithUnitOfWork(execCtx, unit), nil
}

// AfterCommit registers work that must only run once the surrounding unit committed.
type AfterCommit func(ctx context.Context)

type hooksKey struct{}

type hookList struct {
	hooks []AfterCommit
}

// WithHooks prepares ctx to collect after-commit hooks.
func WithHooks(ctx context.Context) context.Context {
	return context.WithValue(ctx, hooksKey{}, &hookList{})
}

// OnCommit queues fn to run after commit. Without a collecting context fn runs immediately.
func OnCommit(ctx context.Context, fn AfterCommit) {
	if list, ok := ctx.Value(hooksKey{}).(*hookList); ok {
		list.hooks = append(list.hooks, fn)
		return
	}
	fn(ctx)
}

// RunHooks executes queued hooks in registration order.
func RunHooks(ctx context.Context) {
	list, ok := ctx.Value(hooksKey{}).(*hookList)
	if !ok {
		return
	}
	hooks := list.hooks
	list.hooks = nil
	for _, h := range hooks {
		h(ctx)
	}
}
