package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/inferencegate/gateway/internal/registry"
)

// listModelsHandler handles GET /v1/models, listing one entry per
// chat-capable registered server — the gateway has no separate model
// catalog, so a server's id doubles as its model id.
func (s *Server) listModelsHandler(c *echo.Context) error {
	var data []modelInfo
	for _, srv := range s.group.List() {
		if !srv.Kind.Has(registry.Chat) {
			continue
		}
		data = append(data, modelInfo{ID: srv.ID, Object: "model", OwnedBy: "gateway"})
	}
	return c.JSON(http.StatusOK, modelsResponse{Object: "list", Data: data})
}
