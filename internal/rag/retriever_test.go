package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferencegate/gateway/internal/config"
	"github.com/inferencegate/gateway/internal/mcpadapter"
	"github.com/inferencegate/gateway/internal/orchestrator"
	"github.com/inferencegate/gateway/internal/registry"
)

func TestRetrieverAugmentNoopWhenDisabled(t *testing.T) {
	r := NewRetriever(registry.NewServerGroup(), mcpadapter.NewClient(mcpadapter.NewRegistry(nil), nil), mcpadapter.NewRegistry(nil), config.RAGSection{Enable: false}, nil)
	req := &orchestrator.Request{Messages: []orchestrator.Message{msg("user", "hello")}}
	err := r.Augment(context.Background(), req, true, "req-1")
	require.NoError(t, err)
	text, _ := req.Messages[0].TextContent()
	assert.Equal(t, "hello", text)
}

func TestRetrieverAugmentNoBackendsMergesPlaceholder(t *testing.T) {
	cfg := config.RAGSection{Enable: true, Policy: config.PolicyLastUserMessage, ContextWindow: 3}
	r := NewRetriever(registry.NewServerGroup(), mcpadapter.NewClient(mcpadapter.NewRegistry(nil), nil), mcpadapter.NewRegistry(nil), cfg, nil)
	req := &orchestrator.Request{Messages: []orchestrator.Message{msg("user", "hello")}}
	err := r.Augment(context.Background(), req, true, "req-2")
	require.NoError(t, err)
	text, _ := req.Messages[0].TextContent()
	assert.Contains(t, text, noContextRetrievedMessage)
	assert.Contains(t, text, "hello")
}

func TestBuildContextStringEmpty(t *testing.T) {
	assert.Equal(t, noContextRetrievedMessage, buildContextString(nil))
}

func TestBuildContextStringJoinsPassages(t *testing.T) {
	hits := []scoredHit{{Content: "A"}, {Content: "B"}}
	got := buildContextString(hits)
	assert.Equal(t, "A\n\nB\n\n", got)
}
