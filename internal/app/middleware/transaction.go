package middleware

import (
	"context"

	"booking-service/internal/app/commands"
	"booking-service/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// UnitManaged is implemented by commands whose handler opens its own units of work,
// typically because it talks to external systems between store calls.
type UnitManaged interface {
	ManagesUnit() bool
}

// Transaction runs the handler inside a unit of work and fires after-commit hooks once it committed.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if m, ok := cmd.(UnitManaged); ok && m.ManagesUnit() {
				return nextFn(ctx, cmd)
			}
			if _, ok := uow.FromContext(ctx); ok {
				return nextFn(ctx, cmd)
			}
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			hooksCtx := uow.WithHooks(ctx)
			unit, execCtx, err := uow.Begin(hooksCtx, factory, opts)
			if err != nil {
				return nil, err
			}
			committed := false
			defer func() {
				if !committed {
					_ = unit.Rollback(context.WithoutCancel(execCtx))
				}
			}()

			res, err := nextFn(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if err := unit.Commit(execCtx); err != nil {
				return nil, err
			}
			committed = true
			uow.RunHooks(hooksCtx)
			return res, nil
		})
	}
}
