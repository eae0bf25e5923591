// Package api provides the gateway's HTTP surface: chat/embeddings/audio/
// image routing, admin server registration, and the Prometheus endpoint.
// Built on Echo v5, with a single Server struct composing every dependency
// and a dedicated setupRoutes.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inferencegate/gateway/internal/mcpadapter"
	"github.com/inferencegate/gateway/internal/metrics"
	"github.com/inferencegate/gateway/internal/orchestrator"
	"github.com/inferencegate/gateway/internal/rag"
	"github.com/inferencegate/gateway/internal/registry"
)

// Server is the gateway's HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	group      *registry.ServerGroup
	dispatcher *orchestrator.Dispatcher
	retriever  *rag.Retriever
	mcpReg     *mcpadapter.Registry
	metrics    *metrics.Metrics
	client     *http.Client
	logger     *slog.Logger
}

// NewServer builds a Server with every route registered.
func NewServer(group *registry.ServerGroup, dispatcher *orchestrator.Dispatcher, retriever *rag.Retriever, mcpReg *mcpadapter.Registry, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HTTPErrorHandler = echoErrorHandler(logger)

	s := &Server{
		echo:       e,
		group:      group,
		dispatcher: dispatcher,
		retriever:  retriever,
		mcpReg:     mcpReg,
		metrics:    m,
		client:     http.DefaultClient,
		logger:     logger.With("component", "api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every endpoint from the gateway's HTTP surface
// table, wide-open CORS, and a generous body limit ahead of the
// multipart audio endpoints.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(32 * 1024 * 1024))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))

	s.echo.POST("/v1/chat/completions", s.chatCompletionsHandler)
	s.echo.POST("/v1/embeddings", s.proxyHandler(registry.Embeddings, "/embeddings"))
	s.echo.POST("/v1/audio/transcriptions", s.proxyHandler(registry.Transcribe, "/audio/transcriptions"))
	s.echo.POST("/v1/audio/translations", s.proxyHandler(registry.Translate, "/audio/translations"))
	s.echo.POST("/v1/audio/speech", s.proxyHandler(registry.TTS, "/audio/speech"))
	s.echo.POST("/v1/images/generations", s.proxyHandler(registry.Image, "/images/generations"))
	s.echo.POST("/v1/images/edits", s.proxyHandler(registry.Image, "/images/edits"))

	s.echo.POST("/admin/servers/register", s.registerServerHandler)
	s.echo.POST("/admin/servers/unregister", s.unregisterServerHandler)
	s.echo.GET("/admin/servers", s.listServersHandler)

	s.echo.GET("/v1/models", s.listModelsHandler)
	s.echo.GET("/v1/info", s.infoHandler)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, used
// by tests that want a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
