package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"

	"booking-service/internal/app/commands"
	"booking-service/internal/app/dto"
	availabilityapp "booking-service/internal/app/handlers/availability"
	bookingapp "booking-service/internal/app/handlers/booking"
	"booking-service/internal/app/middleware"
	"booking-service/internal/app/queries"
	domainauth "booking-service/internal/domain/auth"
	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/money"
	domainuser "booking-service/internal/domain/user"
	"booking-service/internal/infra/obs"
	"booking-service/internal/infra/payments"
	"booking-service/internal/infra/receipts"
	"booking-service/internal/infra/storage/memory"
	"booking-service/internal/infra/validation"
)

var (
	jwtSecret  = []byte("test-secret")
	hookSecret = "whsec_test"
	fixedNow   = time.Date(2031, 5, 1, 12, 0, 0, 0, time.UTC)
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	gateway *payments.FakeGateway
	repo    *memory.BookingRepository
}

func newTestServer(t *testing.T, limiter RateLimiter) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	listings := memory.NewListingRepository()
	directory := memory.NewDirectory()
	repo := memory.NewBookingRepository()
	box := memory.NewOutbox()
	factory := memory.Factory{ListingsRepo: listings, BookingRepo: repo, Directory: directory, OutboxStore: box}
	require.NoError(t, listings.Save(ctx, &domainlistings.Listing{
		ID: "listing-100", Host: "host-1", Title: "Old Town Loft", City: "Prague", NightlyRate: money.Must(10000, "USD"), GuestsLimit: 4,
	}))
	require.NoError(t, directory.Save(ctx, domainuser.Profile{ID: "guest-1", Name: "Jan", Email: "jan@example.com"}))

	gateway := payments.NewFakeGateway()
	clock := func() time.Time { return fixedNow }

	base := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CreateBookingCommand, *dto.CreateBookingResult](base, &bookingapp.CreateBookingHandler{
		UoWFactory: factory, Gateway: gateway, Locker: memory.NewKeyedLocker(), Logger: logger, Clock: clock,
	})
	commands.RegisterHandler[bookingapp.CancelBookingCommand, *dto.Booking](base, &bookingapp.CancelBookingHandler{Gateway: gateway, Logger: logger, Clock: clock})
	commands.RegisterHandler[bookingapp.ConfirmPaymentCommand, *bookingapp.SettlementResult](base, &bookingapp.ConfirmPaymentHandler{Logger: logger, Clock: clock})
	commands.RegisterHandler[bookingapp.CancelPaymentIntentCommand, *bookingapp.SettlementResult](base, &bookingapp.CancelPaymentIntentHandler{Logger: logger, Clock: clock})
	validator := validation.New()
	cmdBus := middleware.ChainCommands(base,
		middleware.Validation(validator),
		middleware.Authorization(middleware.PrincipalAuthorizer{}),
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil),
		middleware.Transaction(factory, nil),
		middleware.OutboxFlush(box, logger),
	)

	baseQueries := queries.NewInMemoryBus()
	queries.RegisterHandler[availabilityapp.CheckAvailabilityQuery, dto.Availability](baseQueries, &availabilityapp.CheckAvailabilityHandler{UoWFactory: factory})
	queries.RegisterHandler[bookingapp.ListGuestBookingsQuery, dto.GuestBookingCollection](baseQueries, &bookingapp.ListGuestBookingsHandler{UoWFactory: factory, Logger: logger})
	queries.RegisterHandler[bookingapp.ListHostBookingsQuery, dto.HostBookingCollection](baseQueries, &bookingapp.ListHostBookingsHandler{UoWFactory: factory, Logger: logger})
	queries.RegisterHandler[bookingapp.GetBookingReceiptQuery, *bookingapp.ReceiptDocument](baseQueries, &bookingapp.GetBookingReceiptHandler{
		UoWFactory: factory, Renderer: receipts.PDFRenderer{}, Clock: clock,
	})
	queryBus := middleware.ChainQueries(baseQueries,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.PrincipalAuthorizer{}),
	)

	router := NewRouter(obs.Middleware{Logger: logger}, obs.HealthHandlers{}, Handlers{
		Booking:        BookingHandler{Commands: cmdBus, Queries: queryBus, Logger: logger, Currency: "USD"},
		Availability:   AvailabilityHandler{Queries: queryBus, Logger: logger},
		Payments:       PaymentsHandler{Commands: cmdBus, WebhookSecret: hookSecret, Inbox: memory.NewInbox(), Logger: logger},
		AuthMiddleware: AuthMiddleware{Secret: jwtSecret, Logger: logger}.Handle,
		CreateLimiter:  limiter,
	})
	return &testServer{router: router, gateway: gateway, repo: repo}
}

func token(t *testing.T, p domainauth.Principal) string {
	t.Helper()
	tok, err := SignToken(jwtSecret, p, time.Hour)
	require.NoError(t, err)
	return tok
}

func guestToken(t *testing.T, id string) string {
	return token(t, domainauth.Principal{ID: id})
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type createResponse struct {
	Booking      dto.Booking `json:"booking"`
	ClientSecret string      `json:"client_secret"`
}

func (s *testServer) createBooking(t *testing.T, bearer, in, out string, headers map[string]string) (*httptest.ResponseRecorder, createResponse) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/bookings", bearer, map[string]any{
		"listing_id": "listing-100", "check_in": in, "check_out": out, "guests": 2,
	}, headers)
	var resp createResponse
	if rec.Code == http.StatusCreated {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestCreateBookingEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	guest := guestToken(t, "guest-1")

	rec, resp := s.createBooking(t, guest, "2031-06-01", "2031-06-05", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "PENDING", resp.Booking.Status)
	assert.Equal(t, int64(40000), resp.Booking.TotalPrice.Amount)
	assert.Equal(t, "400.00 USD", resp.Booking.TotalPrice.Display)
	assert.Equal(t, resp.Booking.PaymentIntentID+"_secret", resp.ClientSecret)

	rec, _ = s.createBooking(t, guestToken(t, "guest-2"), "2031-06-03", "2031-06-07", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.createBooking(t, guestToken(t, "guest-2"), "2031-06-05", "2031-06-08", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	s := newTestServer(t, nil)
	guest := guestToken(t, "guest-1")

	rec, _ := s.createBooking(t, "", "2031-06-01", "2031-06-05", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.createBooking(t, "not-a-jwt", "2031-06-01", "2031-06-05", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.createBooking(t, guest, "2031-06-05", "2031-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.createBooking(t, guest, "2031-04-01", "2031-04-05", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.createBooking(t, guest, "first of june", "2031-06-05", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/bookings", guest, map[string]any{
		"listing_id": "listing-100", "check_in": "2031-06-01", "check_out": "2031-06-05", "total_price": 123.00,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "total price")

	for _, guests := range []int{0, -2} {
		rec = s.do(t, http.MethodPost, "/api/v1/bookings", guest, map[string]any{
			"listing_id": "listing-100", "check_in": "2031-06-01", "check_out": "2031-06-05", "guests": guests,
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "guests=%d", guests)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/bookings", guest, map[string]any{
		"listing_id": "listing-404", "check_in": "2031-06-01", "check_out": "2031-06-05",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 0, s.repo.Len())
	assert.Equal(t, 0, s.gateway.Created())
}

func TestCreateBookingGatewayFailure(t *testing.T) {
	s := newTestServer(t, nil)
	s.gateway.FailWith(assert.AnError)

	rec, _ := s.createBooking(t, guestToken(t, "guest-1"), "2031-06-01", "2031-06-05", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "payment gateway unavailable", errorBody(t, rec))
	assert.Equal(t, 0, s.repo.Len())
}

func TestCreateBookingIdempotencyKey(t *testing.T) {
	s := newTestServer(t, nil)
	guest := guestToken(t, "guest-1")
	headers := map[string]string{"Idempotency-Key": "checkout-42"}

	rec, first := s.createBooking(t, guest, "2031-06-01", "2031-06-05", headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, second := s.createBooking(t, guest, "2031-06-01", "2031-06-05", headers)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, first.Booking.ID, second.Booking.ID)
	assert.Equal(t, first.ClientSecret, second.ClientSecret)
	assert.Equal(t, 1, s.gateway.Created())
}

func TestCreateBookingRateLimited(t *testing.T) {
	s := newTestServer(t, memory.NewSlidingWindowLimiter(1, time.Minute))
	guest := guestToken(t, "guest-1")

	rec, _ := s.createBooking(t, guest, "2031-06-01", "2031-06-05", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = s.createBooking(t, guest, "2031-07-01", "2031-07-05", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec, _ = s.createBooking(t, guestToken(t, "guest-2"), "2031-07-01", "2031-07-05", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAvailabilityEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec, _ := s.createBooking(t, guestToken(t, "guest-1"), "2031-06-01", "2031-06-05", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/listings/listing-100/availability?check_in=2031-06-03&check_out=2031-06-07", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var busy dto.Availability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &busy))
	assert.False(t, busy.Available)
	require.Len(t, busy.Conflicts, 1)
	assert.NotContains(t, rec.Body.String(), "guest-1")

	rec = s.do(t, http.MethodGet, "/api/v1/listings/listing-100/availability?check_in=2031-06-05&check_out=2031-06-08", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var free dto.Availability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &free))
	assert.True(t, free.Available)

	rec = s.do(t, http.MethodGet, "/api/v1/listings/listing-100/availability?check_in=june", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec, created := s.createBooking(t, guestToken(t, "guest-1"), "2031-06-01", "2031-06-05", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/api/v1/bookings/" + created.Booking.ID + "/cancel"

	rec = s.do(t, http.MethodPatch, path, guestToken(t, "guest-2"), nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, path, guestToken(t, "guest-1"), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"CANCELLED"`)
	assert.True(t, s.gateway.IsCancelled(created.Booking.PaymentIntentID))

	rec = s.do(t, http.MethodPatch, path, guestToken(t, "guest-1"), nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/bookings/nope/cancel", guestToken(t, "guest-1"), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func stripeEvent(t *testing.T, eventID, eventType, intentID string) ([]byte, string) {
	t.Helper()
	payload := `{"id":"` + eventID + `","object":"event","type":"` + eventType + `","data":{"object":{"id":"` + intentID + `","object":"payment_intent"}}}`
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: hookSecret, Timestamp: time.Now()})
	return sp.Payload, sp.Header
}

func TestWebhookConfirmsBookingAndServesReceipt(t *testing.T) {
	s := newTestServer(t, nil)
	guest := guestToken(t, "guest-1")
	rec, created := s.createBooking(t, guest, "2031-06-01", "2031-06-05", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	receiptPath := "/api/v1/bookings/" + created.Booking.ID + "/receipt"
	rec = s.do(t, http.MethodGet, receiptPath, guest, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	body, sig := stripeEvent(t, "evt_1", "payment_intent.succeeded", created.Booking.PaymentIntentID)
	rec = s.do(t, http.MethodPost, "/api/v1/payments/webhook", "", body, map[string]string{"Stripe-Signature": sig})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"CONFIRMED"`)

	rec = s.do(t, http.MethodPost, "/api/v1/payments/webhook", "", body, map[string]string{"Stripe-Signature": sig})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"duplicate":true`)

	rec = s.do(t, http.MethodGet, receiptPath, guest, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), created.Booking.ID)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = s.do(t, http.MethodPatch, "/api/v1/bookings/"+created.Booking.ID+"/cancel", guest, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "confirmed stays can be cancelled before check-in")
}

func TestWebhookAcknowledgesIrrelevantEvents(t *testing.T) {
	s := newTestServer(t, nil)

	body, sig := stripeEvent(t, "evt_1", "payment_intent.succeeded", "pi_unknown")
	rec := s.do(t, http.MethodPost, "/api/v1/payments/webhook", "", body, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusOK, rec.Code)

	body, sig = stripeEvent(t, "evt_2", "payment_intent.created", "pi_unknown")
	rec = s.do(t, http.MethodPost, "/api/v1/payments/webhook", "", body, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/payments/webhook", "", body, map[string]string{"Stripe-Signature": "t=1,v1=bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingLists(t *testing.T) {
	s := newTestServer(t, nil)
	rec, _ := s.createBooking(t, guestToken(t, "guest-1"), "2031-06-01", "2031-06-05", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/bookings/my-bookings", guestToken(t, "guest-1"), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine dto.GuestBookingCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine.Items, 1)
	assert.Equal(t, "Old Town Loft", mine.Items[0].Listing.Title)

	rec = s.do(t, http.MethodGet, "/api/v1/bookings/host-bookings", guestToken(t, "guest-1"), nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	host := token(t, domainauth.Principal{ID: "host-1", IsHost: true})
	rec = s.do(t, http.MethodGet, "/api/v1/bookings/host-bookings?status=pending", host, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hosted dto.HostBookingCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hosted))
	require.Len(t, hosted.Items, 1)
	assert.Equal(t, "Jan", hosted.Items[0].Guest.Name)

	rec = s.do(t, http.MethodGet, "/api/v1/bookings/host-bookings?status=archived", host, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/livez", "", nil, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/readyz", "", nil, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/swagger/doc.json", "", nil, nil).Code)
}

func TestParseTokenRejectsExpiredAndForeignTokens(t *testing.T) {
	expired, err := SignToken(jwtSecret, domainauth.Principal{ID: "guest-1"}, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(jwtSecret, expired)
	assert.Error(t, err)

	foreign, err := SignToken([]byte("other"), domainauth.Principal{ID: "guest-1"}, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(jwtSecret, foreign)
	assert.Error(t, err)

	p, err := ParseToken(jwtSecret, token(t, domainauth.Principal{ID: "host-1", IsHost: true, Name: "Anna"}))
	require.NoError(t, err)
	assert.Equal(t, domainauth.Principal{ID: "host-1", IsHost: true, Name: "Anna"}, p)
}
