package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// infoHandler handles GET /v1/info: aggregated info for every registered
// server (id, url, capability set, and current health).
func (s *Server) infoHandler(c *echo.Context) error {
	servers := s.group.List()
	entries := make([]infoServerEntry, 0, len(servers))
	for _, srv := range servers {
		entries = append(entries, infoServerEntry{
			ID:      srv.ID,
			URL:     srv.URL,
			Kind:    srv.Kind.String(),
			Healthy: s.group.IsHealthy(srv.ID),
		})
	}

	var mcpEntries []infoMCPServerEntry
	if s.mcpReg != nil {
		for _, svc := range s.mcpReg.Services() {
			mcpEntries = append(mcpEntries, infoMCPServerEntry{Name: svc.Name, Tools: svc.ToolNames()})
		}
	}

	return c.JSON(http.StatusOK, infoResponse{Servers: entries, MCPServers: mcpEntries})
}
