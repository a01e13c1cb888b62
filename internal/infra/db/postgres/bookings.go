package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	domainbooking "booking-service/internal/domain/booking"
	"booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
	"booking-service/internal/domain/shared/money"
)

const bookingColumns = `id, listing_id, host_id, guest_id, check_in, check_out, guests,
	nightly_rate_amount, total_amount, currency, state, payment_intent_id, cancel_reason,
	created_at, updated_at, version`

// BookingRepo runs against the transaction of the unit it belongs to. The bookings_no_overlap
// exclusion constraint is what rejects a second active booking for the same nights.
type BookingRepo struct {
	db DB
}

func NewBookingRepo(db DB) *BookingRepo {
	return &BookingRepo{db: db}
}

func (r *BookingRepo) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	const op = "postgres.BookingRepo.ByID"
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}
	return b, nil
}

func (r *BookingRepo) ByPaymentIntent(ctx context.Context, intentID string) (*domainbooking.Booking, error) {
	const op = "postgres.BookingRepo.ByPaymentIntent"
	if intentID == "" {
		return nil, domainbooking.ErrBookingNotFound
	}
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE payment_intent_id = $1`, intentID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}
	return b, nil
}

func (r *BookingRepo) FindActiveOverlapping(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "postgres.BookingRepo.FindActiveOverlapping",
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE listing_id = $1
		   AND state IN ('PENDING', 'CONFIRMED')
		   AND daterange(check_in, check_out, '[)') && daterange($2::date, $3::date, '[)')
		 ORDER BY check_in`,
		string(listingID), dr.CheckIn, dr.CheckOut,
	)
}

func (r *BookingRepo) Insert(ctx context.Context, b *domainbooking.Booking) error {
	const op = "postgres.BookingRepo.Insert"
	var intent *string
	if b.PaymentIntentID != "" {
		intent = &b.PaymentIntentID
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1)`,
		string(b.ID), string(b.ListingID), string(b.HostID), b.GuestID,
		b.Range.CheckIn, b.Range.CheckOut, b.Guests,
		b.NightlyRate.Amount, b.Total.Amount, b.Total.Currency,
		string(b.State), intent, b.CancelReason,
		b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}
	b.Version = 1
	return nil
}

func (r *BookingRepo) UpdateStatus(ctx context.Context, b *domainbooking.Booking, expected domainbooking.BookingState) error {
	const op = "postgres.BookingRepo.UpdateStatus"
	var version int64
	err := r.db.QueryRow(ctx,
		`UPDATE bookings
		 SET state = $2, cancel_reason = $3, updated_at = $4, version = version + 1
		 WHERE id = $1 AND state = $5
		 RETURNING version`,
		string(b.ID), string(b.State), b.CancelReason, b.UpdatedAt.UTC(), string(expected),
	).Scan(&version)
	if err == nil {
		b.Version = version
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		if errors.Is(translateDBErr(err), domainbooking.ErrConflict) {
			return fmt.Errorf("%s: %w", op, domainbooking.ErrConcurrentUpdate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, string(b.ID)).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, domainbooking.ErrBookingNotFound)
	}
	return fmt.Errorf("%s: %w", op, domainbooking.ErrConcurrentUpdate)
}

func (r *BookingRepo) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "postgres.BookingRepo.ListByGuest",
		`SELECT `+bookingColumns+` FROM bookings WHERE guest_id = $1 ORDER BY created_at DESC`, guestID)
}

func (r *BookingRepo) ListByHost(ctx context.Context, hostID listings.HostID) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "postgres.BookingRepo.ListByHost",
		`SELECT `+bookingColumns+` FROM bookings WHERE host_id = $1 ORDER BY created_at DESC`, string(hostID))
}

func (r *BookingRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "postgres.BookingRepo.ListStalePending",
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE state = 'PENDING' AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`,
		createdBefore.UTC(), limitOrAll(limit))
}

func (r *BookingRepo) ListFinishedConfirmed(ctx context.Context, checkOutBy time.Time, limit int) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "postgres.BookingRepo.ListFinishedConfirmed",
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE state = 'CONFIRMED' AND check_out <= $1::date
		 ORDER BY check_out
		 LIMIT $2`,
		checkOutBy.UTC(), limitOrAll(limit))
}

func (r *BookingRepo) list(ctx context.Context, op, sql string, args ...any) ([]*domainbooking.Booking, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}
	defer rows.Close()

	out := make([]*domainbooking.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanBooking(row pgx.Row) (*domainbooking.Booking, error) {
	var (
		b                   domainbooking.Booking
		id, listingID, host string
		state, currency     string
		rate, total         int64
		intent              *string
	)
	err := row.Scan(
		&id, &listingID, &host, &b.GuestID,
		&b.Range.CheckIn, &b.Range.CheckOut, &b.Guests,
		&rate, &total, &currency,
		&state, &intent, &b.CancelReason,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.ID = domainbooking.BookingID(id)
	b.ListingID = listings.ListingID(listingID)
	b.HostID = listings.HostID(host)
	b.State = domainbooking.BookingState(state)
	b.NightlyRate = money.Money{Amount: rate, Currency: currency}
	b.Total = money.Money{Amount: total, Currency: currency}
	if intent != nil {
		b.PaymentIntentID = *intent
	}
	b.Range.CheckIn = b.Range.CheckIn.UTC()
	b.Range.CheckOut = b.Range.CheckOut.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

// limitOrAll turns a non-positive limit into NULL, which LIMIT treats as no limit.
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

var _ domainbooking.Repository = (*BookingRepo)(nil)
