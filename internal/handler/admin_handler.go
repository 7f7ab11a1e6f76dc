package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"clinic-booking-api/internal/model"
)

// Routes in this file sit behind Auth and RequireRole(admin).

func (h *Handler) PromoteUser(c echo.Context) error {
	id := c.Param("id")
	if !validID(id) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	if err := h.svc.PromoteUser(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"modifiedCount": 1})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	out, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	if out == nil {
		out = []model.Doctor{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) AddDoctor(c echo.Context) error {
	var d model.Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddDoctor(c.Request().Context(), &d); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"acknowledged": true, "insertedId": d.ID})
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id := c.Param("id")
	if !validID(id) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	n, err := h.svc.DeleteDoctor(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"deletedCount": n})
}
