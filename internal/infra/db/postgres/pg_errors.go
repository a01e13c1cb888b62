package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domainbooking "booking-service/internal/domain/booking"
)

const (
	codeUniqueViolation      = "23505"
	codeExclusionViolation   = "23P01"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// translateDBErr maps driver errors onto domain errors. Overlap and serialization
// failures both mean another writer won the dates.
func translateDBErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domainbooking.ErrBookingNotFound
	}
	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch pge.Code {
		case codeUniqueViolation, codeExclusionViolation, codeSerializationFailure, codeDeadlockDetected:
			return domainbooking.ErrConflict
		}
	}
	return err
}
