package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"clinic-booking-api/internal/auth"
	"clinic-booking-api/internal/clinic"
	"clinic-booking-api/internal/middleware"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/payment"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc      *clinic.Service
	tokens   *auth.Validator
	payments payment.Gateway // nil when no processor is configured
	store    Pinger
	log      zerolog.Logger
}

func New(svc *clinic.Service, tokens *auth.Validator, payments payment.Gateway, store Pinger, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		tokens:   tokens,
		payments: payments,
		store:    store,
		log:      logger.With().Str("component", "handler").Logger(),
	}
}

// RegisterRoutes mounts the public API. limiter throttles the open identity
// endpoints; it may be nil.
func (h *Handler) RegisterRoutes(e *echo.Echo, limiter *middleware.RateLimiter) {
	throttle := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if limiter != nil {
		throttle = middleware.RateLimit(limiter)
	}
	authed := middleware.Auth(h.tokens)
	admin := middleware.RequireRole(h.svc, model.RoleAdmin)

	e.GET("/", h.Root)
	e.GET("/health", h.Health)

	e.GET("/appointmentOptions", h.AppointmentOptions)
	e.GET("/v2/appointmentOptions", h.AppointmentOptionsV2)
	e.GET("/appointmentSpecialty", h.AppointmentSpecialty)

	e.GET("/bookings", h.BookingsByEmail, authed)
	e.GET("/bookings/:id", h.GetBooking)
	e.POST("/bookings", h.CreateBooking)

	e.GET("/jwt", h.IssueToken, throttle)
	e.GET("/users", h.ListUsers)
	e.POST("/users", h.CreateUser, throttle)
	e.GET("/users/admin/:email", h.IsAdmin)
	e.PUT("/users/admin/:id", h.PromoteUser, authed, admin)

	e.GET("/doctors", h.ListDoctors, authed, admin)
	e.POST("/dashboard/adddoctor", h.AddDoctor, authed, admin)
	e.DELETE("/doctors/:id", h.DeleteDoctor, authed, admin)

	e.POST("/create-payment-intent", h.CreatePaymentIntent)
	e.POST("/payments", h.RecordPayment)
}

func (h *Handler) Root(c echo.Context) error {
	return c.String(http.StatusOK, "doctors-portal server is running")
}

func (h *Handler) Health(c echo.Context) error {
	if err := h.store.Ping(c.Request().Context()); err != nil {
		h.log.Error().Err(err).Msg("health check failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps core errors to HTTP; infrastructure detail stays in the log.
func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	h.log.Error().Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
