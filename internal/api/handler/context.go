package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonychat/anonychat-api/internal/api/middleware"
	"github.com/anonychat/anonychat-api/internal/core/domain"
)

// currentIdentity returns the identity injected by the Auth middleware.
// Its absence means the route was mounted without Auth, so reject with 401.
func currentIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok || id.ID == "" {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized. Please log in.")
	}
	return id, nil
}

// bindAndValidate decodes the body into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}
