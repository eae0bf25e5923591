package mcpadapter

import (
	"fmt"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inferencegate/gateway/internal/config"
)

// createTransport builds an MCP SDK transport from a configured tool
// section.
func createTransport(cfg config.MCPServerToolSection) (mcpsdk.Transport, error) {
	switch cfg.Transport {
	case "stdio":
		return createStdioTransport(cfg)
	case "stream-http":
		return &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}, nil
	case "sse":
		return &mcpsdk.SSEClientTransport{Endpoint: cfg.URL}, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

func createStdioTransport(cfg config.MCPServerToolSection) (*mcpsdk.CommandTransport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("stdio transport requires command")
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env
	return &mcpsdk.CommandTransport{Command: cmd}, nil
}
