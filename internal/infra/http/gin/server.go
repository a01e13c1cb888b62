package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"booking-service/internal/infra/config"
	"booking-service/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Cancel(c *gin.Context)
	MyBookings(c *gin.Context)
	HostBookings(c *gin.Context)
	Receipt(c *gin.Context)
}

type AvailabilityHTTP interface {
	Check(c *gin.Context)
}

type PaymentsHTTP interface {
	Webhook(c *gin.Context)
}

type Handlers struct {
	Booking        BookingHTTP
	Availability   AvailabilityHTTP
	Payments       PaymentsHTTP
	AuthMiddleware gin.HandlerFunc
	// CreateLimiter throttles POST /bookings.
	CreateLimiter RateLimiter
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the route table; tests drive it through httptest.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(obsMW.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"Content-Disposition",
			"Retry-After",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	registerSwaggerRoutes(router)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		bookings := api.Group("/bookings")
		bookings.POST("", RateLimit(h.CreateLimiter, obsMW.Logger), h.Booking.Create)
		bookings.GET("/my-bookings", h.Booking.MyBookings)
		bookings.GET("/host-bookings", h.Booking.HostBookings)
		bookings.PATCH("/:id/cancel", h.Booking.Cancel)
		bookings.GET("/:id/receipt", h.Booking.Receipt)
	}
	if h.Availability != nil {
		api.GET("/listings/:id/availability", h.Availability.Check)
	}
	if h.Payments != nil {
		api.POST("/payments/webhook", h.Payments.Webhook)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}

var (
	_ BookingHTTP      = BookingHandler{}
	_ AvailabilityHTTP = AvailabilityHandler{}
	_ PaymentsHTTP     = PaymentsHandler{}
)
