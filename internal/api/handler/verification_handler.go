package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/anonychat/anonychat-api/internal/core/ports"
)

type VerificationHandler struct {
	codes ports.VerificationService
}

func NewVerificationHandler(codes ports.VerificationService) *VerificationHandler {
	return &VerificationHandler{codes: codes}
}

type verifyRequest struct {
	Username string `json:"username" validate:"required"`
	Code     string `json:"code"     validate:"required,len=6,numeric"`
}

type resendRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
}

type resetRequestRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

type resetVerifyRequest struct {
	Username    string `json:"username"    validate:"required"`
	Code        string `json:"code"        validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// Verify redeems an email verification code.
//
// @Summary      Verify email
// @Tags         verification
// @Accept       json
// @Produce      json
// @Param        body  body      verifyRequest  true  "Username and code"
// @Success      200   {object}  Envelope
// @Failure      400   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Router       /verify [post]
func (h *VerificationHandler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.codes.VerifyEmail(c.Request().Context(), req.Username, req.Code); err != nil {
		return err
	}
	return respondOK(c, "User verified successfully.")
}

// Resend issues a fresh verification code.
//
// @Summary      Resend verification code
// @Tags         verification
// @Accept       json
// @Produce      json
// @Param        body  body      resendRequest  true  "Username and email"
// @Success      200   {object}  Envelope
// @Failure      400   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Failure      429   {object}  Envelope
// @Router       /resend-verification [post]
func (h *VerificationHandler) Resend(c echo.Context) error {
	var req resendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.codes.ResendVerification(c.Request().Context(), req.Username, req.Email); err != nil {
		return err
	}
	return respondOK(c, "Verification code has been resent to your email.")
}

// RequestPasswordReset emails a reset code. The response does not reveal
// whether the account exists.
//
// @Summary      Request password reset
// @Tags         verification
// @Accept       json
// @Produce      json
// @Param        body  body      resetRequestRequest  true  "Username or email"
// @Success      200   {object}  Envelope
// @Failure      400   {object}  Envelope
// @Failure      429   {object}  Envelope
// @Router       /reset-password/request [post]
func (h *VerificationHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.codes.RequestPasswordReset(c.Request().Context(), req.Identifier); err != nil {
		return err
	}
	return respondOK(c, "If the account exists, a reset code has been sent to its email.")
}

// ResetPassword redeems a reset code and sets a new password.
//
// @Summary      Reset password
// @Tags         verification
// @Accept       json
// @Produce      json
// @Param        body  body      resetVerifyRequest  true  "Code and new password"
// @Success      200   {object}  Envelope
// @Failure      400   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Router       /reset-password/verify [post]
func (h *VerificationHandler) ResetPassword(c echo.Context) error {
	var req resetVerifyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	err := h.codes.ResetPassword(c.Request().Context(), ports.ResetPasswordInput{
		Username:    req.Username,
		Code:        req.Code,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return err
	}
	return respondOK(c, "Password updated successfully.")
}
