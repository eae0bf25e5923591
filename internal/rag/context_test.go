package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferencegate/gateway/internal/config"
	"github.com/inferencegate/gateway/internal/orchestrator"
)

func msg(role, text string) orchestrator.Message {
	return orchestrator.Message{Role: role, Content: mustMarshalJSONString(text)}
}

func TestVectorQueryTextCollectsWithinWindow(t *testing.T) {
	req := &orchestrator.Request{Messages: []orchestrator.Message{
		msg("user", "first"),
		msg("assistant", "reply"),
		msg("user", "second"),
	}}
	text, err := VectorQueryText(req, 2)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", text)
}

func TestVectorQueryTextStopsAtHealthSentinel(t *testing.T) {
	req := &orchestrator.Request{Messages: []orchestrator.Message{
		msg("user", "irrelevant older turn"),
		msg("user", "ping<server-health>"),
	}}
	text, err := VectorQueryText(req, 5)
	require.NoError(t, err)
	assert.Equal(t, "ping", text)
}

func TestVectorQueryTextNoUserMessages(t *testing.T) {
	req := &orchestrator.Request{Messages: []orchestrator.Message{msg("assistant", "hi")}}
	_, err := VectorQueryText(req, 3)
	assert.Error(t, err)
}

func TestKeywordQueryTextLastUser(t *testing.T) {
	req := &orchestrator.Request{Messages: []orchestrator.Message{
		msg("system", "sys"),
		msg("user", "question"),
	}}
	text, err := KeywordQueryText(req)
	require.NoError(t, err)
	assert.Equal(t, "question", text)
}

func TestMergeContextSystemMessageAppendsToExisting(t *testing.T) {
	req := &orchestrator.Request{Messages: []orchestrator.Message{
		msg("system", "be helpful"),
		msg("user", "question"),
	}}
	err := MergeContext(req, "some context", config.PolicySystemMessage, "", true)
	require.NoError(t, err)
	text, _ := req.Messages[0].TextContent()
	assert.Contains(t, text, "be helpful")
	assert.Contains(t, text, "some context")
}

func TestMergeContextSystemMessageDowngradesWithoutSystemPrompt(t *testing.T) {
	req := &orchestrator.Request{Messages: []orchestrator.Message{
		msg("user", "question"),
	}}
	err := MergeContext(req, "ctx", config.PolicySystemMessage, "", false)
	require.NoError(t, err)
	text, _ := req.Messages[len(req.Messages)-1].TextContent()
	assert.Contains(t, text, "question")
	assert.Contains(t, text, "ctx")
}

func TestMergeContextLastUserMessage(t *testing.T) {
	req := &orchestrator.Request{Messages: []orchestrator.Message{
		msg("user", "what is X?"),
	}}
	err := MergeContext(req, "X is a thing.", config.PolicyLastUserMessage, "", true)
	require.NoError(t, err)
	text, _ := req.Messages[0].TextContent()
	assert.Contains(t, text, "X is a thing.")
	assert.Contains(t, text, "what is X?")
}

func TestMergeContextRejectsEmptyContext(t *testing.T) {
	req := &orchestrator.Request{Messages: []orchestrator.Message{msg("user", "q")}}
	err := MergeContext(req, "   ", config.PolicyLastUserMessage, "", true)
	assert.Error(t, err)
}

func TestMergeContextExpandsLiteralNewlineInPrompt(t *testing.T) {
	req := &orchestrator.Request{Messages: []orchestrator.Message{msg("user", "q")}}
	err := MergeContext(req, "ctx", config.PolicyLastUserMessage, `line1\nline2`, true)
	require.NoError(t, err)
	text, _ := req.Messages[0].TextContent()
	assert.Contains(t, text, "line1\nline2")
}
