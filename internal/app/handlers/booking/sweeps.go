package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"booking-service/internal/app/commands"
	handlersupport "booking-service/internal/app/handlers/support"
	"booking-service/internal/app/outbox"
	"booking-service/internal/app/policies"
	"booking-service/internal/app/uow"
	domainbooking "booking-service/internal/domain/booking"
)

const (
	expirePendingKey = "booking.expire_pending"
	completeStaysKey = "booking.complete_stays"

	defaultPendingTTL = 30 * time.Minute
	defaultSweepBatch = 100
)

// ExpirePendingBookingsCommand cancels PENDING bookings whose payment never settled.
type ExpirePendingBookingsCommand struct {
	Now time.Time
}

func (c ExpirePendingBookingsCommand) Key() string { return expirePendingKey }

func (c ExpirePendingBookingsCommand) ManagesUnit() bool { return true }

// CompleteStaysCommand closes CONFIRMED bookings whose checkout day has come.
type CompleteStaysCommand struct {
	Now time.Time
}

func (c CompleteStaysCommand) Key() string { return completeStaysKey }

func (c CompleteStaysCommand) ManagesUnit() bool { return true }

type SweepResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// ExpirePendingBookingsHandler transitions each stale booking in its own unit so one
// concurrent settlement does not abort the whole batch.
type ExpirePendingBookingsHandler struct {
	UoWFactory  uow.UoWFactory
	Gateway     policies.PaymentGateway
	Encoder     outbox.EventEncoder
	Logger      *slog.Logger
	TTL         time.Duration
	BatchSize   int
	VoidTimeout time.Duration
}

func (h *ExpirePendingBookingsHandler) Handle(ctx context.Context, cmd ExpirePendingBookingsCommand) (*SweepResult, error) {
	now := cmd.Now.UTC()
	if cmd.Now.IsZero() {
		now = time.Now().UTC()
	}
	ttl := h.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	stale, err := h.listStale(ctx, now.Add(-ttl))
	if err != nil {
		return nil, err
	}
	voider := handlersupport.IntentVoider{Gateway: h.Gateway, Logger: h.Logger, Timeout: h.VoidTimeout}
	res := &SweepResult{}
	for _, candidate := range stale {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			b, err := unit.Bookings().ByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if err := b.Expire(now, ttl); err != nil {
				return err
			}
			if err := unit.Bookings().UpdateStatus(ctx, b, domainbooking.StatePending); err != nil {
				return err
			}
			return outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, b.Drain())
		})
		if err != nil {
			if isSkippable(err) {
				res.Skipped++
				continue
			}
			return res, err
		}
		res.Processed++
		voider.Void(ctx, candidate.PaymentIntentID, string(candidate.ID), domainbooking.ReasonPaymentTimeout)
	}
	if res.Processed > 0 && h.Logger != nil {
		h.Logger.Info("stale pending bookings expired", "count", res.Processed, "skipped", res.Skipped)
	}
	return res, nil
}

func (h *ExpirePendingBookingsHandler) listStale(ctx context.Context, before time.Time) ([]*domainbooking.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return unit.Bookings().ListStalePending(execCtx, before, batchSize(h.BatchSize))
}

type CompleteStaysHandler struct {
	UoWFactory uow.UoWFactory
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	BatchSize  int
}

func (h *CompleteStaysHandler) Handle(ctx context.Context, cmd CompleteStaysCommand) (*SweepResult, error) {
	now := cmd.Now.UTC()
	if cmd.Now.IsZero() {
		now = time.Now().UTC()
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	finished, err := unit.Bookings().ListFinishedConfirmed(execCtx, now, batchSize(h.BatchSize))
	if cleanup != nil {
		cleanup()
	}
	if err != nil {
		return nil, err
	}
	res := &SweepResult{}
	for _, candidate := range finished {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			b, err := unit.Bookings().ByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if err := b.Complete(now); err != nil {
				return err
			}
			if err := unit.Bookings().UpdateStatus(ctx, b, domainbooking.StateConfirmed); err != nil {
				return err
			}
			return outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, b.Drain())
		})
		if err != nil {
			if isSkippable(err) {
				res.Skipped++
				continue
			}
			return res, err
		}
		res.Processed++
	}
	if res.Processed > 0 && h.Logger != nil {
		h.Logger.Info("stays completed", "count", res.Processed, "skipped", res.Skipped)
	}
	return res, nil
}

// isSkippable reports errors caused by a booking moving on since it was listed.
func isSkippable(err error) bool {
	return errors.Is(err, domainbooking.ErrInvalidState) ||
		errors.Is(err, domainbooking.ErrConcurrentUpdate) ||
		errors.Is(err, domainbooking.ErrNotExpired) ||
		errors.Is(err, domainbooking.ErrStayNotFinished)
}

func batchSize(n int) int {
	if n <= 0 {
		return defaultSweepBatch
	}
	return n
}

var _ commands.Handler[ExpirePendingBookingsCommand, *SweepResult] = (*ExpirePendingBookingsHandler)(nil)
var _ commands.Handler[CompleteStaysCommand, *SweepResult] = (*CompleteStaysHandler)(nil)
