package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToolCallsFromStreamFirstFrame(t *testing.T) {
	body := `data: {"choices":[{"delta":{"tool_calls":[{"id":"t1","function":{"name":"calc","arguments":"{}"}}]}}]}` + "\n\n"
	calls, err := ExtractToolCallsFromStream(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "calc", calls[0].Function.Name)
}

func TestExtractToolCallsFromStreamLaterFrame(t *testing.T) {
	// The first frame carries no tool_calls; only a scan across every
	// fragment in the stream will find the later one.
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"id\":\"t2\",\"function\":{\"name\":\"search\",\"arguments\":\"{}\"}}]}}]}\n\n"
	calls, err := ExtractToolCallsFromStream(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Function.Name)
}

func TestExtractToolCallsFromStreamNoneFound(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n"
	calls, err := ExtractToolCallsFromStream(strings.NewReader(body))
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestExtractToolCallsFromBody(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"tool_calls":[{"id":"t1","function":{"name":"web_search","arguments":"{\"q\":\"x\"}"}}]}}]}`)
	calls, err := ExtractToolCallsFromBody(body)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "web_search", calls[0].Function.Name)
}

func TestExtractToolCallsFromBodyNone(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"content":"hello"}}]}`)
	calls, err := ExtractToolCallsFromBody(body)
	require.NoError(t, err)
	assert.Empty(t, calls)
}
