package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"clinic-booking-api/internal/auth"
	"clinic-booking-api/internal/clinic"
	"clinic-booking-api/internal/model"
)

const identityKey = "identity"

// TokenVerifier is satisfied by *auth.Validator.
type TokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

// RoleChecker is satisfied by *clinic.Service.
type RoleChecker interface {
	RequireRole(ctx context.Context, email string, want model.Role) (clinic.Decision, error)
}

// Auth verifies the bearer token: 401 when none is presented, 403 when it
// does not verify. The identity is stored on the echo context.
func Auth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := v.Verify(auth.FromHeader(c.Request().Header.Get(echo.HeaderAuthorization)))
			switch {
			case errors.Is(err, auth.ErrMissingToken):
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized access")
			case err != nil:
				return echo.NewHTTPError(http.StatusForbidden, "forbidden access")
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity Auth stored, if any.
func IdentityFrom(c echo.Context) (auth.Identity, bool) {
	id, ok := c.Get(identityKey).(auth.Identity)
	return id, ok
}

// RequireRole must run after Auth. The role is re-read on every request.
func RequireRole(rc RoleChecker, want model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized access")
			}
			d, err := rc.RequireRole(c.Request().Context(), id.Email, want)
			if err != nil {
				return err
			}
			if d != clinic.Authorized {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden access")
			}
			return next(c)
		}
	}
}
