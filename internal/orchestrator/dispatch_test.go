package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferencegate/gateway/internal/config"
	"github.com/inferencegate/gateway/internal/mcpadapter"
	"github.com/inferencegate/gateway/internal/registry"
)

var toolTestSchema = json.RawMessage(`{"type":"object"}`)

func newTestGroup(t *testing.T, backendURL string) *registry.ServerGroup {
	t.Helper()
	g := registry.NewServerGroup()
	require.NoError(t, g.Register(registry.NewServer(registry.Chat, backendURL, "")))
	return g
}

// newMCPWithTool starts a real MCP server over stream-http and connects an
// adapter Client to it through the normal Connect path, so the dispatch tests
// exercise the full tool-call loop rather than a hand-wired test double.
func newMCPWithTool(t *testing.T, toolName, resultText, serviceName string) (*mcpadapter.Client, *mcpadapter.Registry, func()) {
	t.Helper()
	mcpServer := mcpsdk.NewServer(&mcpsdk.Implementation{Name: serviceName, Version: "test"}, nil)
	mcpServer.AddTool(&mcpsdk.Tool{Name: toolName, Description: "searches " + serviceName, InputSchema: toolTestSchema}, func(_ context.Context, _ *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: resultText}}}, nil
	})
	handler := mcpsdk.NewStreamableHTTPHandler(func(_ *http.Request) *mcpsdk.Server { return mcpServer }, nil)
	ts := httptest.NewServer(handler)

	reg := mcpadapter.NewRegistry(nil)
	client := mcpadapter.NewClient(reg, nil)
	err := client.Connect(context.Background(), config.MCPServerToolSection{
		Name:      serviceName,
		Transport: "stream-http",
		URL:       ts.URL + "/mcp",
	})
	require.NoError(t, err)

	return client, reg, ts.Close
}

func TestDispatchNonStreamToolCall(t *testing.T) {
	calls := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		var req Request
		require.NoError(t, json.Unmarshal(body, &req))

		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			require.Len(t, req.Tools, 1)
			assert.Equal(t, "web_search", req.Tools[0].Function.Name)
			assert.Equal(t, "searches cardea-elastic-mcp-server", req.Tools[0].Function.Description)
			assert.JSONEq(t, string(toolTestSchema), string(req.Tools[0].Function.Parameters))
			_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{"id":"t1","function":{"name":"web_search","arguments":"{\"q\":\"x\"}"}}]}}]}`))
			return
		}
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "assistant", req.Messages[1].Role)
		assert.Equal(t, "tool", req.Messages[2].Role)
		assert.Equal(t, "t1", req.Messages[2].ToolCallID)
		assert.True(t, req.ToolChoiceIsNone())
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"done"}}]}`))
	}))
	defer backend.Close()

	mcpClient, mcpReg, closeMCP := newMCPWithTool(t, "web_search", "R", "cardea-elastic-mcp-server")
	defer closeMCP()
	group := newTestGroup(t, backend.URL)
	d := NewDispatcher(group, mcpClient, mcpReg, nil)

	req := &Request{Messages: []Message{{Role: "user", Content: mustMarshalString("hi")}}}
	resp, err := d.Dispatch(context.Background(), req, http.Header{})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "done")
	assert.Equal(t, 2, calls)
}

func TestDispatchStreamToolCall(t *testing.T) {
	calls := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("requires-tool-call", "true")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"tool_calls":[{"id":"t1","function":{"name":"calc","arguments":"{}"}}]}}]}` + "\n\n"))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	mcpClient, mcpReg, closeMCP := newMCPWithTool(t, "calc", "42", "calc-service")
	defer closeMCP()
	group := newTestGroup(t, backend.URL)
	d := NewDispatcher(group, mcpClient, mcpReg, nil)

	req := &Request{Stream: true, Messages: []Message{{Role: "user", Content: mustMarshalString("2+2?")}}}
	resp, err := d.Dispatch(context.Background(), req, http.Header{})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 2, calls)
}

func TestDispatchRetriesOnSchemaRejection(t *testing.T) {
	calls := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		var req Request
		require.NoError(t, json.Unmarshal(body, &req))

		if calls == 1 {
			assert.False(t, req.ToolChoiceIsNone())
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Failed to deserialize generated tool calls: bad schema"}`))
			return
		}
		assert.True(t, req.ToolChoiceIsNone())
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer backend.Close()

	group := newTestGroup(t, backend.URL)
	d := NewDispatcher(group, mcpadapter.NewClient(mcpadapter.NewRegistry(nil), nil), mcpadapter.NewRegistry(nil), nil)

	req := &Request{
		Messages:   []Message{{Role: "user", Content: mustMarshalString("hi")}},
		Tools:      []ToolDesc{{Type: "function", Function: FuncDesc{Name: "x"}}},
		ToolChoice: mustMarshalString("auto"),
	}
	resp, err := d.Dispatch(context.Background(), req, http.Header{})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestDispatchNoHealthyServer(t *testing.T) {
	group := registry.NewServerGroup()
	d := NewDispatcher(group, mcpadapter.NewClient(mcpadapter.NewRegistry(nil), nil), mcpadapter.NewRegistry(nil), nil)
	req := &Request{Messages: []Message{{Role: "user", Content: mustMarshalString("hi")}}}
	_, err := d.Dispatch(context.Background(), req, http.Header{})
	assert.Error(t, err)
}
