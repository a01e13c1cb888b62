package support

import (
	"context"
	"time"

	"booking-service/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit already on ctx or opens a read-only one.
// The returned cleanup is nil when the unit was inherited.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	unit, execCtx, err := uow.Begin(ctx, factory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	cleanup := func() {
		_ = unit.Rollback(context.WithoutCancel(execCtx))
	}
	return unit, execCtx, cleanup, nil
}

// RunInUnit executes fn inside a fresh read-write unit and commits when fn succeeds.
func RunInUnit(ctx context.Context, factory uow.UoWFactory, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	unit, execCtx, err := uow.Begin(ctx, factory, uow.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(execCtx, unit); err != nil {
		_ = unit.Rollback(context.WithoutCancel(execCtx))
		return err
	}
	return unit.Commit(execCtx)
}

// Now returns clock() in UTC, falling back to the wall clock.
func Now(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}
