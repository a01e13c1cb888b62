package ginserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"booking-service/internal/app/commands"
	"booking-service/internal/app/dto"
	bookingapp "booking-service/internal/app/handlers/booking"
	"booking-service/internal/app/queries"
	"booking-service/internal/domain/shared/daterange"
	"booking-service/internal/domain/shared/money"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
	// Currency of client supplied totals.
	Currency string
}

type createBookingRequest struct {
	ListingID  string       `json:"listing_id" binding:"required"`
	CheckIn    string       `json:"check_in" binding:"required"`
	CheckOut   string       `json:"check_out" binding:"required"`
	Guests     *int         `json:"guests"`
	TotalPrice *json.Number `json:"total_price"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	checkIn, err := parseDay(req.CheckIn)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	checkOut, err := parseDay(req.CheckOut)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	guests := 1
	if req.Guests != nil {
		guests = *req.Guests
	}
	cmd := bookingapp.CreateBookingCommand{
		ListingID:       strings.TrimSpace(req.ListingID),
		GuestID:         user.ID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          guests,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	if req.TotalPrice != nil {
		total, err := money.ParseMajor(req.TotalPrice.String(), h.currency())
		if err != nil {
			respondError(c, h.Logger, err)
			return
		}
		cmd.ClientTotal = &total
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.CreateBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":       "booking created, complete the payment to confirm it",
		"booking":       result.Booking,
		"client_secret": result.ClientSecret,
	})
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	cmd := bookingapp.CancelBookingCommand{
		BookingID: strings.TrimSpace(c.Param("id")),
		GuestID:   user.ID,
	}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "booking cancelled", "booking": result})
}

func (h BookingHandler) MyBookings(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	query := bookingapp.ListGuestBookingsQuery{GuestID: user.ID}
	result, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.GuestBookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) HostBookings(c *gin.Context) {
	host, ok := requirePrincipal(c)
	if !ok {
		return
	}
	query := bookingapp.ListHostBookingsQuery{
		HostID: host.ID,
		Status: strings.ToUpper(strings.TrimSpace(c.Query("status"))),
	}
	result, err := queries.Ask[bookingapp.ListHostBookingsQuery, dto.HostBookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Receipt(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	query := bookingapp.GetBookingReceiptQuery{
		BookingID: strings.TrimSpace(c.Param("id")),
		GuestID:   user.ID,
	}
	doc, err := queries.Ask[bookingapp.GetBookingReceiptQuery, *bookingapp.ReceiptDocument](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}

func (h BookingHandler) currency() string {
	if h.Currency == "" {
		return "USD"
	}
	return h.Currency
}

// parseDay accepts YYYY-MM-DD or RFC 3339 timestamps.
func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.Join(daterange.ErrInvalidRange, err)
	}
	return daterange.Day(t), nil
}
