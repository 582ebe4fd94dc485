package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonychat/anonychat-api/internal/core/ports"
)

type AccountHandler struct {
	accounts ports.AccountService
}

func NewAccountHandler(accounts ports.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type usernameQuery struct {
	Username string `query:"username" json:"username" validate:"required,username"`
}

type acceptMessagesRequest struct {
	AcceptMessages *bool `json:"acceptMessages" validate:"required"`
}

// Register creates an unverified account and emails a verification code.
//
// @Summary      Sign up
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Signup details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  Envelope
// @Failure      409   {object}  Envelope
// @Failure      429   {object}  Envelope
// @Failure      500   {object}  Envelope
// @Router       /accounts [post]
func (h *AccountHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	account, err := h.accounts.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, registerResponse{
		Envelope: ok("User registered successfully. Please verify your email."),
		Account:  account,
	})
}

// UsernameAvailable reports whether a username can still be claimed.
//
// @Summary      Check username availability
// @Tags         accounts
// @Produce      json
// @Param        username  query     string  true  "Username"
// @Success      200       {object}  Envelope
// @Failure      400       {object}  Envelope
// @Failure      409       {object}  Envelope
// @Router       /accounts/username-available [get]
func (h *AccountHandler) UsernameAvailable(c echo.Context) error {
	var q usernameQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}
	if err := h.accounts.CheckUsernameAvailable(c.Request().Context(), q.Username); err != nil {
		return err
	}
	return respondOK(c, "Username is available.")
}

// Eligibility tells a sender whether a username can receive messages right now.
//
// @Summary      Check message eligibility
// @Tags         accounts
// @Produce      json
// @Param        username  query     string  true  "Recipient username"
// @Success      200       {object}  eligibilityResponse
// @Failure      400       {object}  Envelope
// @Router       /eligibility [get]
func (h *AccountHandler) Eligibility(c echo.Context) error {
	var q usernameQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	e, err := h.accounts.CheckEligibility(c.Request().Context(), q.Username)
	if err != nil {
		return err
	}

	msg := "User is accepting messages."
	switch {
	case !e.Exists:
		msg = "Username does not exist or is not verified."
	case !e.AcceptsMessages:
		msg = "User is not accepting messages."
	}
	return c.JSON(http.StatusOK, eligibilityResponse{
		Envelope:        ok(msg),
		Exists:          e.Exists,
		AcceptsMessages: e.AcceptsMessages,
	})
}

// GetAcceptMessages returns the caller's acceptance flag.
//
// @Summary      Get acceptance flag
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  acceptMessagesResponse
// @Failure      401  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /accept-messages [get]
func (h *AccountHandler) GetAcceptMessages(c echo.Context) error {
	id, err := currentIdentity(c)
	if err != nil {
		return err
	}

	accepting, err := h.accounts.AcceptingMessages(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acceptMessagesResponse{
		Envelope:           ok(acceptanceMessage("User is", accepting)),
		IsAcceptingMessage: accepting,
	})
}

// SetAcceptMessages updates the caller's acceptance flag.
//
// @Summary      Set acceptance flag
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      acceptMessagesRequest  true  "New flag"
// @Success      200   {object}  acceptMessagesResponse
// @Failure      400   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Router       /accept-messages [post]
func (h *AccountHandler) SetAcceptMessages(c echo.Context) error {
	id, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req acceptMessagesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	accepting, err := h.accounts.SetAcceptingMessages(c.Request().Context(), id.ID, *req.AcceptMessages)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acceptMessagesResponse{
		Envelope:           ok(acceptanceMessage("User is now", accepting)),
		IsAcceptingMessage: accepting,
	})
}

func acceptanceMessage(prefix string, accepting bool) string {
	if accepting {
		return prefix + " accepting messages."
	}
	return prefix + " not accepting messages."
}
