package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestPreservesRAGExtensions(t *testing.T) {
	body := []byte(`{
		"messages": [{"role":"user","content":"hi"}],
		"vdb_collection_name": "docs",
		"weighted_alpha": 0.7
	}`)
	req, err := ParseRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Extra, "vdb_collection_name")
	assert.Contains(t, req.Extra, "weighted_alpha")

	out, err := req.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"vdb_collection_name":"docs"`)
}

func TestToolChoiceHelpers(t *testing.T) {
	req := &Request{}
	assert.False(t, req.ToolChoiceIsNone())

	req.SetToolChoiceNone()
	assert.True(t, req.ToolChoiceIsNone())

	req.SetToolChoiceAuto()
	assert.False(t, req.ToolChoiceIsNone())
}

func TestLastUserMessage(t *testing.T) {
	req := &Request{Messages: []Message{
		{Role: "system"},
		{Role: "user"},
		{Role: "assistant"},
	}}
	assert.Equal(t, 1, req.LastUserMessage())
}
