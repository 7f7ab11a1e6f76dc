package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"clinic-booking-api/internal/auth"
)

type tokenResponse struct {
	AccessToken string `json:"Access_token"`
}

// IssueToken signs a token for a registered email. Unknown emails get 401
// with an empty token rather than an error body.
func (h *Handler) IssueToken(c echo.Context) error {
	tok, err := h.tokens.Issue(c.Request().Context(), c.QueryParam("email"))
	if errors.Is(err, auth.ErrUnknownEmail) {
		return c.JSON(http.StatusUnauthorized, tokenResponse{})
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: tok})
}

type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	reg, err := h.svc.RegisterUser(c.Request().Context(), req.Email, req.Name)
	if err != nil {
		return h.fail(c, err)
	}
	code := http.StatusOK
	if reg.Created {
		code = http.StatusCreated
	}
	return c.JSON(code, reg)
}

func (h *Handler) ListUsers(c echo.Context) error {
	out, err := h.svc.ListUsers(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) IsAdmin(c echo.Context) error {
	ok, err := h.svc.IsAdmin(c.Request().Context(), c.Param("email"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"isAdmin": ok})
}
