package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonychat/anonychat-api/internal/api/handler"
	"github.com/anonychat/anonychat-api/internal/core/domain"
)

// categories maps each domain error category to its HTTP status, most
// specific first.
var categories = []struct {
	kind   error
	status int
}{
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrTooManyRequests, http.StatusTooManyRequests},
	{domain.ErrUpstream, http.StatusInternalServerError},
}

// named errors whose own text is the client-facing message.
var named = []error{
	domain.ErrInvalidCode,
	domain.ErrCodeExpired,
	domain.ErrInvalidMessageID,
	domain.ErrInvalidCredentials,
	domain.ErrAccountNotVerified,
	domain.ErrNotAcceptingMessages,
	domain.ErrAccountNotFound,
	domain.ErrNoMessages,
	domain.ErrUsernameTaken,
	domain.ErrEmailTaken,
	domain.ErrMailDelivery,
	domain.ErrAIUnavailable,
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain error categories to their HTTP status codes.
//   - Logs server-side failures without leaking details to the client.
//   - Renders the envelope: {"success": false, "message": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, handler.Envelope{Success: false, Message: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, auth middleware).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil && he.Code >= http.StatusInternalServerError {
			logFailure(log, c, he.Internal)
		}
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	for _, cat := range categories {
		if !errors.Is(err, cat.kind) {
			continue
		}
		if cat.status >= http.StatusInternalServerError {
			logFailure(log, c, err)
		}
		return cat.status, publicMessage(err, cat.kind)
	}

	// Unexpected error: log the real cause, return a generic message.
	logFailure(log, c, err)
	return http.StatusInternalServerError, "An error occurred while processing your request."
}

// publicMessage picks the named domain error in the chain, or the detail
// following "<category>: " for ad-hoc wrapped errors.
func publicMessage(err, kind error) string {
	for _, n := range named {
		if errors.Is(err, n) {
			return n.Error()
		}
	}
	msg := err.Error()
	prefix := kind.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return kind.Error()
}

func logFailure(log zerolog.Logger, c echo.Context, err error) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("request failed")
}
