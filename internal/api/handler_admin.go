package api

import (
	"encoding/json"
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/inferencegate/gateway/internal/gwerrors"
	"github.com/inferencegate/gateway/internal/registry"
)

// registerServerHandler handles POST /admin/servers/register.
func (s *Server) registerServerHandler(c *echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return gwerrors.Newf(gwerrors.BadRequest, "read request body: %v", err)
	}
	var req registerServerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return gwerrors.Newf(gwerrors.BadRequest, "decode register request: %v", err)
	}
	if req.URL == "" {
		return gwerrors.New(gwerrors.BadRequest, "url is required")
	}

	kind, err := registry.ParseCapabilitySet(req.Kind)
	if err != nil {
		return gwerrors.InvalidServerKindf(req.Kind)
	}

	srv := registry.NewServer(kind, req.URL, req.APIKey)
	if err := s.group.Register(srv); err != nil {
		return err
	}

	s.logger.Info("server registered", "id", srv.ID, "url", srv.URL, "kind", kind.String())
	return c.JSON(http.StatusOK, registerServerResponse{ID: srv.ID, URL: srv.URL, Kind: kind.String()})
}

// unregisterServerHandler handles POST /admin/servers/unregister.
func (s *Server) unregisterServerHandler(c *echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return gwerrors.Newf(gwerrors.BadRequest, "read request body: %v", err)
	}
	var req unregisterServerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return gwerrors.Newf(gwerrors.BadRequest, "decode unregister request: %v", err)
	}
	if req.ServerID == "" {
		return gwerrors.New(gwerrors.BadRequest, "server_id is required")
	}

	if err := s.group.Unregister(req.ServerID); err != nil {
		return gwerrors.Newf(gwerrors.BadRequest, "%v", err)
	}

	s.logger.Info("server unregistered", "id", req.ServerID)
	return c.JSON(http.StatusOK, unregisterServerResponse{Message: "server unregistered", ID: req.ServerID})
}

// listServersHandler handles GET /admin/servers, returning every
// registered server's id bucketed under each capability name it carries.
func (s *Server) listServersHandler(c *echo.Context) error {
	byCapability := make(map[string][]string)
	for _, srv := range s.group.List() {
		for _, name := range capabilityList(srv.Kind) {
			byCapability[name] = append(byCapability[name], srv.ID)
		}
	}
	return c.JSON(http.StatusOK, byCapability)
}

// capabilityList splits a bitset back into its canonical-order member
// names, used wherever the HTTP layer needs a per-capability breakdown.
func capabilityList(kind registry.Capability) []string {
	var names []string
	for _, bit := range []registry.Capability{
		registry.Chat, registry.Embeddings, registry.Image,
		registry.TTS, registry.Translate, registry.Transcribe,
	} {
		if kind.Has(bit) {
			names = append(names, (kind & bit).String())
		}
	}
	return names
}
