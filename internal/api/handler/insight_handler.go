package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonychat/anonychat-api/internal/core/ports"
)

type InsightHandler struct {
	insights ports.InsightService
}

func NewInsightHandler(insights ports.InsightService) *InsightHandler {
	return &InsightHandler{insights: insights}
}

// Suggest returns AI generated conversation starters.
//
// @Summary      Suggest messages
// @Tags         insights
// @Produce      json
// @Success      200  {object}  suggestResponse
// @Failure      500  {object}  Envelope
// @Router       /suggest-messages [post]
func (h *InsightHandler) Suggest(c echo.Context) error {
	questions, err := h.insights.SuggestMessages(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, suggestResponse{
		Envelope:  ok("Suggestions generated successfully."),
		Questions: questions,
	})
}

// Summarize returns an AI summary of the caller's inbox.
//
// @Summary      Summarize my messages
// @Tags         insights
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  summaryResponse
// @Failure      400  {object}  Envelope
// @Failure      401  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Failure      500  {object}  Envelope
// @Router       /summarize-messages [post]
func (h *InsightHandler) Summarize(c echo.Context) error {
	id, err := currentIdentity(c)
	if err != nil {
		return err
	}

	summary, err := h.insights.SummarizeMessages(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summaryResponse{
		Envelope: ok("Summary generated successfully."),
		Summary:  summary,
	})
}
