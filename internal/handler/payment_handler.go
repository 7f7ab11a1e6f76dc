package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"clinic-booking-api/internal/clinic"
)

type intentRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (h *Handler) CreatePaymentIntent(c echo.Context) error {
	if h.payments == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	}
	var req intentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !req.Price.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be positive")
	}
	secret, err := h.payments.CreateIntent(c.Request().Context(), req.Price)
	if err != nil {
		h.log.Error().Err(err).Msg("payment intent failed")
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway error")
	}
	return c.JSON(http.StatusOK, map[string]string{"clientSecret": secret})
}

// RecordPayment settles a booking. A replayed transaction answers 200 with
// the first receipt.
func (h *Handler) RecordPayment(c echo.Context) error {
	var req clinic.PaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.BookingID != "" && !validID(req.BookingID) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}
	r, err := h.svc.RecordPayment(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	if r.Replayed {
		return c.JSON(http.StatusOK, r)
	}
	return c.JSON(http.StatusCreated, r)
}
