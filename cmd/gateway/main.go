// Command gateway runs the inference gateway: chat/embeddings/audio/image
// routing, MCP tool-call orchestration, and hybrid RAG retrieval.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/inferencegate/gateway/internal/api"
	"github.com/inferencegate/gateway/internal/config"
	"github.com/inferencegate/gateway/internal/mcpadapter"
	"github.com/inferencegate/gateway/internal/metrics"
	"github.com/inferencegate/gateway/internal/orchestrator"
	"github.com/inferencegate/gateway/internal/rag"
	"github.com/inferencegate/gateway/internal/registry"
)

// shutdownTimeout bounds how long in-flight requests get to drain once a
// shutdown signal arrives.
const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", envOr("GATEWAY_CONFIG", "./config.toml"), "path to the gateway's TOML configuration file")
	flag.Parse()

	mcpadapter.AppVersion = gitCommit()
	logger := slog.Default()
	logger.Info("starting", "version", mcpadapter.AppName+"/"+mcpadapter.AppVersion)

	if err := run(*configPath, logger); err != nil {
		logger.Error("gateway exited with error", "error", err)
		os.Exit(1)
	}
}

// gitCommit reads the short git commit hash (8 chars) embedded in the
// binary by the Go 1.18+ toolchain's automatic VCS stamping. Falls back to
// "dev" when build info is unavailable (e.g. `go test`, non-git builds) —
// this is also the value every MCP server sees in the handshake's client
// version field, so an operator can match a misbehaving tool-call session
// back to the exact gateway build from server-side logs alone.
func gitCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 8 {
				return s.Value[:8]
			}
			return s.Value
		}
	}
	return "dev"
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Initialize(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	group := registry.NewServerGroup()
	mcpReg := mcpadapter.NewRegistry(logger)
	mcpClient := mcpadapter.NewClient(mcpReg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, toolCfg := range cfg.MCPServers {
		if !toolCfg.Enable {
			continue
		}
		if err := mcpClient.Connect(ctx, toolCfg); err != nil {
			return fmt.Errorf("failed to connect configured mcp server %q: %w", toolCfg.Name, err)
		}
	}
	defer mcpClient.Close()

	m := metrics.New()

	health := registry.NewHealthMonitor(group, time.Duration(cfg.HealthCheckInterval)*time.Second, logger)
	health.OnSweep = func(byCapability map[string]int) {
		for capability, count := range byCapability {
			m.SetHealthyServers(capability, count)
		}
	}
	health.Start(ctx)
	defer health.Stop()

	dispatcher := orchestrator.NewDispatcher(group, mcpClient, mcpReg, logger)
	dispatcher.Metrics = m

	retriever := rag.NewRetriever(group, mcpClient, mcpReg, cfg.RAG, logger)
	retriever.Metrics = m

	server := api.NewServer(group, dispatcher, retriever, mcpReg, m, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("failed to bind http listener: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("gateway stopped cleanly")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
