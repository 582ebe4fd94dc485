package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireVerified rejects sessions whose account has not verified its email.
// Must run after Auth.
func RequireVerified() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized. Please log in.")
			}
			if !id.IsVerified {
				return echo.NewHTTPError(http.StatusForbidden, "account is not verified")
			}
			return next(c)
		}
	}
}
