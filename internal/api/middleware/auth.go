package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonychat/anonychat-api/internal/core/domain"
)

const (
	contextKeyIdentity  = "identity"
	contextKeyAccountID = "account_id"
)

// TokenParser validates a session token and returns its claims.
type TokenParser interface {
	ParseToken(token string) (domain.Identity, error)
}

// Auth validates the bearer session token and injects the identity into context.
func Auth(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized. Please log in.")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			id, err := parser.ParseToken(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session").SetInternal(err)
			}

			c.Set(contextKeyIdentity, id)
			c.Set(contextKeyAccountID, id.ID)

			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	id, ok := c.Get(contextKeyIdentity).(domain.Identity)
	return id, ok
}

// AccountIDFrom returns the authenticated account id, or "" for anonymous requests.
func AccountIDFrom(c echo.Context) string {
	id, _ := c.Get(contextKeyAccountID).(string)
	return id
}
