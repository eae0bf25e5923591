package api

import (
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/inferencegate/gateway/internal/gwerrors"
	"github.com/inferencegate/gateway/internal/registry"
)

// proxyHandler builds a thin byte-proxy for a non-chat capability
// (embeddings, transcription, translation, speech, image): route to the
// least-loaded healthy server for capability, forward the request body and
// headers verbatim to urlSuffix, and stream the response back unmodified.
// These carry no tool-call or RAG logic — they share only the
// server-selection contract with the chat path.
func (s *Server) proxyHandler(capability registry.Capability, urlSuffix string) echo.HandlerFunc {
	return func(c *echo.Context) error {
		target, err := s.group.Next(capability)
		if err != nil {
			return err
		}

		httpReq, err := http.NewRequestWithContext(c.Request().Context(), http.MethodPost, target.JoinPath(urlSuffix), c.Request().Body)
		if err != nil {
			return gwerrors.Newf(gwerrors.Operation, "build proxy request: %v", err)
		}
		httpReq.Header = c.Request().Header.Clone()
		httpReq.ContentLength = c.Request().ContentLength
		if target.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+target.APIKey)
		}

		resp, err := s.client.Do(httpReq)
		if err != nil {
			return gwerrors.Newf(gwerrors.Operation, "upstream dispatch failed: %v", err)
		}
		defer resp.Body.Close()

		for name, values := range resp.Header {
			for _, v := range values {
				c.Response().Header().Add(name, v)
			}
		}
		c.Response().WriteHeader(resp.StatusCode)
		_, err = io.Copy(c.Response(), resp.Body)
		return err
	}
}
