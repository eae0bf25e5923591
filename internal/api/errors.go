package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/inferencegate/gateway/internal/gwerrors"
)

// errorBody is the JSON shape for every mapped error response: a single
// "error" field whose content depends on the error's Kind (a free-text
// message for most kinds, the offending capability name for
// NotFoundServer).
type errorBody struct {
	Error string `json:"error"`
}

// echoErrorHandler builds an echo.HTTPErrorHandler that maps the gateway's
// tagged error taxonomy onto HTTP status + body, centralized into Echo's
// error-handler hook so every handler can simply `return err` instead of
// mapping individually.
func echoErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c *echo.Context) {
		if c.Response().Committed {
			return
		}

		var gwErr *gwerrors.Error
		if errors.As(err, &gwErr) {
			if writeErr := c.JSON(gwErr.StatusCode(), errorBody{Error: gwErr.Message}); writeErr != nil {
				logger.Error("failed to write error response", "error", writeErr)
			}
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			msg := http.StatusText(httpErr.Code)
			if s, ok := httpErr.Message.(string); ok && s != "" {
				msg = s
			}
			if writeErr := c.JSON(httpErr.Code, errorBody{Error: msg}); writeErr != nil {
				logger.Error("failed to write error response", "error", writeErr)
			}
			return
		}

		logger.Error("unexpected handler error", "error", err)
		if writeErr := c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"}); writeErr != nil {
			logger.Error("failed to write error response", "error", writeErr)
		}
	}
}
