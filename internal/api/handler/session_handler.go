package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonychat/anonychat-api/internal/core/ports"
)

type SessionHandler struct {
	sessions ports.SessionService
}

func NewSessionHandler(sessions ports.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type signInRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password"   validate:"required"`
}

// SignIn authenticates by username or email and returns a session token.
//
// @Summary      Sign in
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Failure      403   {object}  Envelope
// @Router       /sessions [post]
func (h *SessionHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.sessions.Authenticate(c.Request().Context(), req.Identifier, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, sessionResponse{
		Envelope: ok("Signed in successfully."),
		Token:    session.Token,
		Account:  session.Identity,
	})
}

// Me echoes the claims of the current session.
//
// @Summary      Current session
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  Envelope
// @Router       /sessions/me [get]
func (h *SessionHandler) Me(c echo.Context) error {
	id, err := currentIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{Envelope: ok("Session is valid."), Account: id})
}
