package orchestrator

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/inferencegate/gateway/internal/gwerrors"
)

// streamChunk is the minimal shape of a chat-completion SSE chunk needed to
// detect a tool call.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
}

// ExtractToolCallsFromStream reads an SSE body shaped like
// "data: <json>\n\ndata: <json>\n\n…" and returns the first non-empty
// delta.tool_calls it finds. It iterates every `data:`-prefixed fragment
// across the whole stream rather than stopping after the first chunk, so a
// tool call that arrives a frame later is still caught.
// Returns an empty slice, not an error, if the stream ends without one.
func ExtractToolCallsFromStream(r io.Reader) ([]ToolCall, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		for _, fragment := range splitDataFragments(line) {
			fragment = strings.TrimSpace(fragment)
			if fragment == "" || fragment == "[DONE]" {
				continue
			}
			var chunk streamChunk
			if err := json.Unmarshal([]byte(fragment), &chunk); err != nil {
				continue // not every line is a JSON frame (blank SSE separators, comments)
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if calls := chunk.Choices[0].Delta.ToolCalls; len(calls) > 0 {
				return calls, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "reading SSE stream: %v", err)
	}
	return nil, nil
}

// splitDataFragments strips a leading "data:" and splits on any further
// occurrences, mirroring the original's framing quirk where a single line
// can carry multiple concatenated "data:" frames.
func splitDataFragments(line string) []string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return nil
	}
	line = strings.TrimPrefix(line, "data:")
	return strings.Split(line, "data:")
}
