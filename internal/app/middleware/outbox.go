package middleware

import (
	"context"
	"log/slog"

	"booking-service/internal/app/commands"
	"booking-service/internal/app/outbox"
)

// OutboxFlush nudges the relay after a successful command. The command already committed,
// so a flush failure is logged and the worker picks the records up on its next poll.
func OutboxFlush(f outbox.Flusher, logger *slog.Logger) CommandMiddleware {
	if f == nil {
		panic("middleware: outbox flusher required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := f.Flush(ctx); err != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
