package api

import (
	"io"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/inferencegate/gateway/internal/gwerrors"
	"github.com/inferencegate/gateway/internal/orchestrator"
)

// chatCompletionsHandler handles POST /v1/chat/completions: parses the
// inbound body, augments it with retrieved context when RAG is enabled,
// dispatches through the orchestrator (which owns tool-call handling and
// streaming passthrough), and relays the resulting status and body verbatim
// with only the allow-listed response headers.
func (s *Server) chatCompletionsHandler(c *echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return gwerrors.Newf(gwerrors.BadRequest, "read request body: %v", err)
	}

	req, err := orchestrator.ParseRequest(body)
	if err != nil {
		return gwerrors.Newf(gwerrors.BadRequest, "%v", err)
	}

	headers := c.Request().Header.Clone()
	requestID := headers.Get("x-request-id")
	if requestID == "" {
		requestID = uuid.NewString()
		headers.Set("x-request-id", requestID)
	}
	c.Response().Header().Set("x-request-id", requestID)

	if s.retriever != nil {
		if err := s.retriever.Augment(c.Request().Context(), req, hasSystemMessage(req), requestID); err != nil {
			return err
		}
	}

	resp, err := s.dispatcher.Dispatch(c.Request().Context(), req, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	orchestrator.CopyAllowedHeaders(c.Response().Header(), resp.Header)
	c.Response().WriteHeader(resp.StatusCode)
	_, copyErr := io.Copy(c.Response(), resp.Body)
	c.Response().Flush()
	return copyErr
}

func hasSystemMessage(req *orchestrator.Request) bool {
	for _, m := range req.Messages {
		if m.Role == "system" {
			return true
		}
	}
	return false
}
