package orchestrator

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inferencegate/gateway/internal/gwerrors"
	"github.com/inferencegate/gateway/internal/mcpadapter"
	"github.com/inferencegate/gateway/internal/metrics"
	"github.com/inferencegate/gateway/internal/registry"
)

// toolSchemaRejectionMarker is the substring a downstream server uses to
// signal that it could not deserialize the generated tool-call schema; this
// is the one case that warrants a single retry.
const toolSchemaRejectionMarker = "Failed to deserialize generated tool calls"

// Dispatcher implements the chat-request orchestrator: tool augmentation,
// dispatch with the schema-rejection retry, response classification, and
// the single-pass tool-call loop.
type Dispatcher struct {
	Group  *registry.ServerGroup
	MCP    *mcpadapter.Client
	MCPReg *mcpadapter.Registry
	Client  *http.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics // optional; nil disables instrumentation
}

func NewDispatcher(group *registry.ServerGroup, mcp *mcpadapter.Client, mcpReg *mcpadapter.Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Group:  group,
		MCP:    mcp,
		MCPReg: mcpReg,
		Client: http.DefaultClient,
		Logger: logger.With("component", "orchestrator"),
	}
}

// Dispatch runs the full orchestration pipeline for one inbound chat
// request and returns the http.Response to forward to the client. For a
// streamed 200 response with no tool call, the returned response's Body is
// the live upstream stream — callers must io.Copy it through, not buffer it,
// to preserve true streaming.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, clientHeaders http.Header) (*http.Response, error) {
	requestID := requestIDFrom(clientHeaders)
	log := d.Logger.With("request_id", requestID)

	d.augmentTools(req)

	target, err := d.Group.Next(registry.Chat)
	if err != nil {
		d.observeRequest("error")
		return nil, err
	}

	resp, err := d.sendWithRetry(ctx, target, req, clientHeaders, requestID)
	if err != nil {
		d.observeRequest("error")
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		d.observeRequest("upstream_error")
		return resp, nil
	}

	if req.Stream {
		resp, err = d.classifyStream(ctx, resp, req, target, clientHeaders, requestID, log)
	} else {
		resp, err = d.classifyBuffered(ctx, resp, req, target, clientHeaders, requestID, log)
	}
	if err != nil {
		d.observeRequest("error")
		return nil, err
	}
	d.observeRequest("ok")
	return resp, nil
}

func (d *Dispatcher) observeRequest(outcome string) {
	if d.Metrics != nil {
		d.Metrics.ObserveRequest("chat_completions", outcome)
	}
}

// augmentTools appends a Tool descriptor for every connected MCP service's
// tools and flips tool_choice to "auto" when at least one was appended and
// the caller left it unset/none.
func (d *Dispatcher) augmentTools(req *Request) {
	if d.MCPReg == nil {
		return
	}
	appended := false
	for _, svc := range d.MCPReg.Services() {
		for _, tool := range svc.Tools {
			req.Tools = append(req.Tools, ToolDesc{
				Type: "function",
				Function: FuncDesc{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.InputSchema,
				},
			})
			appended = true
		}
	}
	if appended && (len(req.ToolChoice) == 0 || req.ToolChoiceIsNone()) {
		req.SetToolChoiceAuto()
	}
}

// sendWithRetry sends req to target. A non-2xx response is buffered just
// far enough to check for the tool-schema-rejection marker; on a match it
// retries exactly once with tool_choice=None. A 2xx response is returned
// with its body untouched so the streaming path downstream can pass it
// through without buffering.
func (d *Dispatcher) sendWithRetry(ctx context.Context, target registry.TargetServerInfo, req *Request, clientHeaders http.Header, requestID string) (*http.Response, error) {
	resp, err := d.rawSend(ctx, target, req, clientHeaders, requestID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "read upstream error response: %v", err)
	}

	if len(req.Tools) > 0 && !req.ToolChoiceIsNone() && bytes.Contains(body, []byte(toolSchemaRejectionMarker)) {
		req.SetToolChoiceNone()
		resp2, err2 := d.rawSend(ctx, target, req, clientHeaders, requestID)
		if err2 != nil {
			return nil, err2
		}
		return resp2, nil
	}

	return rebuffer(resp, body), nil
}

// rawSend issues one upstream POST and returns the live response, body
// unread.
func (d *Dispatcher) rawSend(ctx context.Context, target registry.TargetServerInfo, req *Request, clientHeaders http.Header, requestID string) (*http.Response, error) {
	payload, err := req.Marshal()
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "marshal chat request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.JoinPath("/chat/completions"), bytes.NewReader(payload))
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "build upstream request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-request-id", requestID)
	httpReq.Header.Set("Authorization", authorizationFor(target, clientHeaders))

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, gwerrors.New(gwerrors.Operation, "Request was cancelled before a response was received")
		}
		return nil, gwerrors.Newf(gwerrors.Operation, "upstream dispatch failed: %v", err)
	}
	return resp, nil
}

// classifyStream handles the stream=true, status=200 path: true streaming
// passthrough unless the response is flagged requires-tool-call, in which
// case the body must be fully read to extract the tool call.
func (d *Dispatcher) classifyStream(ctx context.Context, resp *http.Response, req *Request, target registry.TargetServerInfo, clientHeaders http.Header, requestID string, log *slog.Logger) (*http.Response, error) {
	if resp.Header.Get("requires-tool-call") != "true" {
		return resp, nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "read streamed response: %v", err)
	}

	calls, err := ExtractToolCallsFromStream(bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		// No tool call found in a stream flagged requires-tool-call; return
		// the body unmodified rather than erroring.
		return rebuffer(resp, bodyBytes), nil
	}

	return d.runToolCallLoop(ctx, calls[0], req, target, clientHeaders, requestID, log)
}

// classifyBuffered handles the stream=false, status=200 path.
func (d *Dispatcher) classifyBuffered(ctx context.Context, resp *http.Response, req *Request, target registry.TargetServerInfo, clientHeaders http.Header, requestID string, log *slog.Logger) (*http.Response, error) {
	bodyBytes, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "read buffered response: %v", err)
	}

	calls, err := ExtractToolCallsFromBody(bodyBytes)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return rebuffer(resp, bodyBytes), nil
	}

	return d.runToolCallLoop(ctx, calls[0], req, target, clientHeaders, requestID, log)
}

// runToolCallLoop executes one tool call, splices the result back into the
// conversation, disables further tool emission, and re-sends to the same
// target. Runs at most once per inbound request. The second response is
// returned to the caller as-is (streaming preserved if the re-issued
// request is itself a stream).
func (d *Dispatcher) runToolCallLoop(ctx context.Context, call ToolCall, req *Request, target registry.TargetServerInfo, clientHeaders http.Header, requestID string, log *slog.Logger) (*http.Response, error) {
	svc, ok := d.MCPReg.ServiceForTool(call.Function.Name)
	if !ok {
		return nil, gwerrors.McpNotFoundClientErr()
	}

	args := parseToolArguments(call.Function.Arguments)
	start := time.Now()
	result, err := d.MCP.CallTool(ctx, svc.Name, call.Function.Name, args)
	if d.Metrics != nil {
		d.Metrics.ObserveToolCallSeconds(call.Function.Name, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	text := result.Text
	if d.MCPReg.IsSearchService(svc.Name) {
		fallback := svc.FallbackMessage
		if !svc.HasFallbackMessage() {
			fallback = mcpadapter.DefaultSearchFallbackMessage
		}
		text = wrapSearchContext(text, fallback)
	}

	appendToolCallTurn(req, call, text)
	if len(req.ToolChoice) > 0 {
		req.SetToolChoiceNone()
	}

	log.Info("tool call resolved, re-dispatching", "tool", call.Function.Name, "service", svc.Name)

	return d.rawSend(ctx, target, req, clientHeaders, requestID)
}

func rebuffer(resp *http.Response, body []byte) *http.Response {
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp
}

func requestIDFrom(h http.Header) string {
	if v := h.Get("x-request-id"); v != "" {
		return v
	}
	return uuid.NewString()
}

func authorizationFor(target registry.TargetServerInfo, clientHeaders http.Header) string {
	if target.APIKey != "" {
		return "Bearer " + target.APIKey
	}
	return clientHeaders.Get("Authorization")
}
