package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"clinic-booking-api/internal/clinic"
	"clinic-booking-api/internal/middleware"
)

func (h *Handler) AppointmentOptions(c echo.Context) error {
	return h.availability(c, clinic.StrategyDiff)
}

func (h *Handler) AppointmentOptionsV2(c echo.Context) error {
	return h.availability(c, clinic.StrategyQuery)
}

func (h *Handler) availability(c echo.Context, st clinic.Strategy) error {
	out, err := h.svc.Availability(c.Request().Context(), c.QueryParam("date"), st)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) AppointmentSpecialty(c echo.Context) error {
	out, err := h.svc.TreatmentNames(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// BookingsByEmail only serves the caller's own bookings.
func (h *Handler) BookingsByEmail(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok || c.QueryParam("email") != id.Email {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden access")
	}
	out, err := h.svc.BookingsByEmail(c.Request().Context(), id.Email)
	if err != nil {
		return h.fail(c, err)
	}
	if out == nil {
		return c.JSON(http.StatusOK, []any{})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetBooking(c echo.Context) error {
	id := c.Param("id")
	if !validID(id) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) CreateBooking(c echo.Context) error {
	var req clinic.BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.CreateBooking(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	if !res.Acknowledged {
		return c.JSON(http.StatusConflict, res)
	}
	return c.JSON(http.StatusCreated, res)
}
