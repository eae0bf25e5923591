package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inferencegate/gateway/internal/config"
	"github.com/inferencegate/gateway/internal/gwerrors"
)

// AppName identifies the gateway to MCP peers during the initial handshake,
// which also advertises this client's default capabilities.
const AppName = "inferencegate-gateway"

// AppVersion is sent as this client's version in the MCP handshake. main
// overwrites it at startup with the build's actual git commit; it defaults
// to "dev" for anything that constructs a Client without going through
// cmd/gateway (tests, in particular).
var AppVersion = "dev"

// Client manages MCP SDK sessions for every configured tool server: a
// session map guarded by an RWMutex, per-server mutexes to prevent
// thundering-herd reconnection, and a ClassifyError-driven single retry on
// CallTool.
type Client struct {
	registry *Registry

	mu       sync.RWMutex
	sessions map[string]*mcpsdk.ClientSession
	clients  map[string]*mcpsdk.Client
	configs  map[string]config.MCPServerToolSection

	reinitMu sync.Map // serviceName → *sync.Mutex

	logger *slog.Logger
}

func NewClient(registry *Registry, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		registry: registry,
		sessions: make(map[string]*mcpsdk.ClientSession),
		clients:  make(map[string]*mcpsdk.Client),
		configs:  make(map[string]config.MCPServerToolSection),
		logger:   logger.With("component", "mcp_client"),
	}
}

// Connect dials one configured MCP server, validates its URL against the
// transport-specific suffix rule (sse → "/sse", stream-http → "/mcp"),
// lists its tools, and registers it in the registry. stdio transports are
// exempt from the suffix check since they have no URL.
func (c *Client) Connect(ctx context.Context, cfg config.MCPServerToolSection) error {
	if err := validateTransportURL(cfg); err != nil {
		return err
	}

	transport, err := createTransport(cfg)
	if err != nil {
		return gwerrors.Newf(gwerrors.Operation, "unsupported transport for %q: %v", cfg.Name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, InitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: AppName, Version: AppVersion}, nil)
	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		return gwerrors.Newf(gwerrors.Operation, "connect to mcp server %q: %v", cfg.Name, err)
	}

	c.mu.Lock()
	c.sessions[cfg.Name] = session
	c.clients[cfg.Name] = client
	c.configs[cfg.Name] = cfg
	c.mu.Unlock()

	toolsResult, err := session.ListTools(initCtx, nil)
	if err != nil {
		return gwerrors.Newf(gwerrors.Operation, "list tools from %q: %v", cfg.Name, err)
	}

	tools := make([]ToolInfo, 0, len(toolsResult.Tools))
	for _, t := range toolsResult.Tools {
		tools = append(tools, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	c.registry.registerService(&Service{
		Name:            cfg.Name,
		Session:         session,
		Tools:           tools,
		FallbackMessage: cfg.Fallback,
	})

	c.logger.Info("mcp server connected", "server", cfg.Name, "tools", len(tools))
	return nil
}

func validateTransportURL(cfg config.MCPServerToolSection) error {
	switch cfg.Transport {
	case "sse":
		if !strings.HasSuffix(cfg.URL, "/sse") {
			return gwerrors.Newf(gwerrors.Operation, "sse transport url for %q must end with /sse", cfg.Name)
		}
	case "stream-http":
		if !strings.HasSuffix(cfg.URL, "/mcp") {
			return gwerrors.Newf(gwerrors.Operation, "stream-http transport url for %q must end with /mcp", cfg.Name)
		}
	case "stdio":
		// no URL to validate
	default:
		return gwerrors.Newf(gwerrors.Operation, "unsupported transport %q for %q", cfg.Transport, cfg.Name)
	}
	return nil
}

// ToolResult is the adapter-level shape of an MCP tool-call outcome: the
// first content item's text, or an error tagged McpEmptyContent when the
// tool returned no content.
type ToolResult struct {
	IsError bool
	Text    string
}

// CallTool invokes a named tool on the named service's session, retrying
// exactly once on a transport-classified failure.
func (c *Client) CallTool(ctx context.Context, serviceName, toolName string, args map[string]any) (*ToolResult, error) {
	result, err := c.callToolOnce(ctx, serviceName, toolName, args)
	if err == nil {
		return toolResultFrom(result)
	}

	if ClassifyError(err) == NoRetry {
		return nil, gwerrors.Newf(gwerrors.Operation, "mcp call_tool %s.%s: %v", serviceName, toolName, err)
	}

	backoff := RetryBackoffMin + time.Duration(rand.Int64N(int64(RetryBackoffMax-RetryBackoffMin)))
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := c.recreateSession(ctx, serviceName); err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "mcp session recreation for %q: %v", serviceName, err)
	}

	result, err = c.callToolOnce(ctx, serviceName, toolName, args)
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "mcp call_tool retry %s.%s: %v", serviceName, toolName, err)
	}
	return toolResultFrom(result)
}

func (c *Client) callToolOnce(ctx context.Context, serviceName, toolName string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	c.mu.RLock()
	session, ok := c.sessions[serviceName]
	c.mu.RUnlock()
	if !ok {
		return nil, gwerrors.McpNotFoundClientErr()
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	return session.CallTool(opCtx, &mcpsdk.CallToolParams{Name: toolName, Arguments: args})
}

func toolResultFrom(result *mcpsdk.CallToolResult) (*ToolResult, error) {
	if result == nil || len(result.Content) == 0 {
		return nil, gwerrors.McpEmptyContentErr()
	}
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	if !ok {
		return nil, gwerrors.Newf(gwerrors.Operation, "only text content is supported from MCP tool results")
	}
	return &ToolResult{IsError: result.IsError, Text: text.Text}, nil
}

func (c *Client) recreateSession(ctx context.Context, serviceName string) error {
	muI, _ := c.reinitMu.LoadOrStore(serviceName, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	c.mu.Lock()
	if session, ok := c.sessions[serviceName]; ok {
		_ = session.Close()
		delete(c.sessions, serviceName)
		delete(c.clients, serviceName)
	}
	cfg, ok := c.configs[serviceName]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no stored configuration for service %q", serviceName)
	}

	reinitCtx, cancel := context.WithTimeout(ctx, ReinitTimeout)
	defer cancel()
	return c.Connect(reinitCtx, cfg)
}

// Close shuts down every session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for name, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %q: %w", name, err)
		}
	}
	c.sessions = make(map[string]*mcpsdk.ClientSession)
	c.clients = make(map[string]*mcpsdk.Client)
	return firstErr
}
