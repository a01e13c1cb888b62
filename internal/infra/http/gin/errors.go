package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	bookingapp "booking-service/internal/app/handlers/booking"
	"booking-service/internal/app/middleware"
	"booking-service/internal/app/policies"
	domainauth "booking-service/internal/domain/auth"
	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
	"booking-service/internal/domain/shared/money"
	"booking-service/internal/infra/validation"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domainauth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domainauth.ErrNotHost),
		errors.Is(err, domainbooking.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, domainlistings.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainbooking.ErrUnavailable),
		errors.Is(err, domainbooking.ErrConflict),
		errors.Is(err, domainbooking.ErrConcurrentUpdate),
		errors.Is(err, middleware.ErrRequestInFlight),
		errors.Is(err, policies.ErrLockTimeout),
		errors.Is(err, bookingapp.ErrReceiptUnavailable):
		return http.StatusConflict
	case errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, domainbooking.ErrCheckInInPast),
		errors.Is(err, domainbooking.ErrInvalidGuests),
		errors.Is(err, domainbooking.ErrPriceMismatch),
		errors.Is(err, domainbooking.ErrAlreadyCancelled),
		errors.Is(err, domainbooking.ErrCancellationWindowClosed),
		errors.Is(err, domainbooking.ErrInvalidState),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, validation.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, policies.ErrGateway):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Server-side failures are logged and their details hidden.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	message := err.Error()
	switch {
	case status == http.StatusBadGateway:
		message = "payment gateway unavailable"
	case status >= http.StatusInternalServerError:
		message = "internal error"
	}
	if status >= http.StatusInternalServerError && logger != nil {
		fields := []any{"status", status, "error", err, "path", c.FullPath(), "request_id", c.GetString("request_id")}
		if uid := c.GetString(userIDContextKey); uid != "" {
			fields = append(fields, "user_id", uid)
		}
		logger.Error("request failed", fields...)
	}
	c.JSON(status, gin.H{"error": message})
}
