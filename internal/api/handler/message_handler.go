package handler

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
)

type MessageHandler struct {
	messages ports.MessageService
}

func NewMessageHandler(messages ports.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type sendMessageRequest struct {
	Username string `json:"username" validate:"required"`
	Content  string `json:"content"  validate:"required,max=500"`
}

// Send delivers an anonymous message. No session is needed.
//
// @Summary      Send anonymous message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        body  body      sendMessageRequest  true  "Recipient and content"
// @Success      200   {object}  sentMessageResponse
// @Failure      400   {object}  Envelope
// @Failure      403   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Failure      429   {object}  Envelope
// @Router       /messages [post]
func (h *MessageHandler) Send(c echo.Context) error {
	var req sendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.messages.Deliver(c.Request().Context(), ports.DeliverInput{
		Username:  req.Username,
		Content:   req.Content,
		ClientKey: c.RealIP(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sentMessageResponse{
		Envelope:  ok("Message sent successfully."),
		MessageID: msg.ID,
	})
}

// List returns the caller's inbox, newest first.
//
// @Summary      List my messages
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  messagesResponse
// @Failure      401  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /messages [get]
func (h *MessageHandler) List(c echo.Context) error {
	id, err := currentIdentity(c)
	if err != nil {
		return err
	}

	msgs, err := h.messages.List(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })

	return c.JSON(http.StatusOK, messagesResponse{
		Envelope: ok("Messages fetched successfully."),
		Messages: msgs,
	})
}

// Delete removes one message from the caller's inbox.
//
// @Summary      Delete message
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Message ID"
// @Success      200  {object}  Envelope
// @Failure      400  {object}  Envelope
// @Failure      401  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /messages/{id} [delete]
func (h *MessageHandler) Delete(c echo.Context) error {
	id, err := currentIdentity(c)
	if err != nil {
		return err
	}
	if err := h.messages.Delete(c.Request().Context(), id.ID, c.Param("id")); err != nil {
		return err
	}
	return respondOK(c, "Message deleted successfully.")
}
