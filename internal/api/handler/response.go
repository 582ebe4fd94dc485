package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonychat/anonychat-api/internal/core/domain"
)

// Envelope is the common shape of every response body.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ok(message string) Envelope {
	return Envelope{Success: true, Message: message}
}

type registerResponse struct {
	Envelope
	Account *domain.Account `json:"account"`
}

type sessionResponse struct {
	Envelope
	Token   string          `json:"token"`
	Account domain.Identity `json:"account"`
}

type meResponse struct {
	Envelope
	Account domain.Identity `json:"account"`
}

type messagesResponse struct {
	Envelope
	Messages []domain.Message `json:"messages"`
}

type sentMessageResponse struct {
	Envelope
	MessageID string `json:"messageId"`
}

type acceptMessagesResponse struct {
	Envelope
	IsAcceptingMessage bool `json:"isAcceptingMessage"`
}

type eligibilityResponse struct {
	Envelope
	Exists          bool `json:"exists"`
	AcceptsMessages bool `json:"acceptsMessages"`
}

type suggestResponse struct {
	Envelope
	Questions []string `json:"questions"`
}

type summaryResponse struct {
	Envelope
	Summary string `json:"summary"`
}

func respondOK(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, ok(message))
}
