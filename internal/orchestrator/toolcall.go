package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/inferencegate/gateway/internal/gwerrors"
)

// nonStreamToolCalls is the minimal shape needed to read
// choices[0].message.tool_calls from a buffered chat-completion response.
type nonStreamToolCalls struct {
	Choices []struct {
		Message struct {
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractToolCallsFromBody reads choices[0].message.tool_calls from a
// buffered (non-streaming) chat-completion response body.
func ExtractToolCallsFromBody(body []byte) ([]ToolCall, error) {
	var parsed nonStreamToolCalls
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "decode chat completion response: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, nil
	}
	return parsed.Choices[0].Message.ToolCalls, nil
}

const contextEnvelopeTemplate = "Please answer the question based on the information between **---BEGIN CONTEXT---** and **---END CONTEXT---**. Do not use any external knowledge. If the information between **---BEGIN CONTEXT---** and **---END CONTEXT---** is empty, please respond with `%s`. Note that DO NOT use any tools if provided.\n\n---BEGIN CONTEXT---\n\n%s\n\n---END CONTEXT---"

// wrapSearchContext builds the "answer strictly from context" envelope used
// when the tool that produced text belongs to a search-like MCP service.
func wrapSearchContext(text, fallback string) string {
	return fmt.Sprintf(contextEnvelopeTemplate, fallback, text)
}

// appendToolCallTurn splices the assistant tool-call message and the tool
// result message onto req.Messages.
func appendToolCallTurn(req *Request, call ToolCall, resultText string) {
	req.Messages = append(req.Messages,
		Message{Role: "assistant", ToolCalls: []ToolCall{call}},
		Message{Role: "tool", ToolCallID: call.ID, Content: mustMarshalString(resultText)},
	)
}

func mustMarshalString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// parseToolArguments parses a tool call's JSON-object arguments, tolerating
// non-JSON input by returning a nil map.
func parseToolArguments(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}
