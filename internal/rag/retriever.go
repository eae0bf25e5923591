package rag

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/inferencegate/gateway/internal/config"
	"github.com/inferencegate/gateway/internal/mcpadapter"
	"github.com/inferencegate/gateway/internal/metrics"
	"github.com/inferencegate/gateway/internal/orchestrator"
	"github.com/inferencegate/gateway/internal/registry"
)

const noContextRetrievedMessage = "No context retrieved"

// Retriever wires the hybrid retriever to its dependencies: the chat/
// embeddings routing group, the MCP adapter, and the RAG policy config.
type Retriever struct {
	Group  *registry.ServerGroup
	MCP    *mcpadapter.Client
	MCPReg *mcpadapter.Registry
	Config  config.RAGSection
	Client  *http.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics // optional; nil disables instrumentation
}

func NewRetriever(group *registry.ServerGroup, mcp *mcpadapter.Client, mcpReg *mcpadapter.Registry, cfg config.RAGSection, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		Group:  group,
		MCP:    mcp,
		MCPReg: mcpReg,
		Config: cfg,
		Client: http.DefaultClient,
		Logger: logger.With("component", "rag"),
	}
}

// Augment runs the full hybrid-retrieval pipeline and merges the resulting
// context into req in place, per the configured merge policy. hasSystemPrompt
// tells the merge step whether a SystemMessage policy can actually target a
// system turn for this chat model.
func (r *Retriever) Augment(ctx context.Context, req *orchestrator.Request, hasSystemPrompt bool, requestID string) error {
	if !r.Config.Enable {
		return nil
	}

	log := r.Logger.With("request_id", requestID)
	params := ParamsFromRequest(req, r.Config)

	kwText, err := KeywordQueryText(req)
	if err != nil {
		r.observeRetrieval("error")
		return err
	}
	vecText, err := VectorQueryText(req, params.ContextWindow)
	if err != nil {
		r.observeRetrieval("error")
		return err
	}

	var kwHits []KeywordHit
	var vecHits []VectorHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := KeywordSearch(gctx, r.MCP, r.MCPReg, r.Group, r.Client, r.Config.KeywordSearchService, kwText, params)
		if err != nil {
			return err
		}
		kwHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := VectorSearch(gctx, r.MCP, r.MCPReg, r.Group, r.Client, r.Config.VectorSearchService, vecText, params)
		if err != nil {
			return err
		}
		vecHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		r.observeRetrieval("error")
		return err
	}

	fused := fuseHits(kwHits, vecHits, params.WeightedAlpha, params.FilterLimit)
	mergedContext := buildContextString(fused)
	log.Info("rag retrieval complete", "keyword_hits", len(kwHits), "vector_hits", len(vecHits), "fused", len(fused))

	if err := MergeContext(req, mergedContext, r.Config.Policy, r.Config.Prompt, hasSystemPrompt); err != nil {
		r.observeRetrieval("error")
		return err
	}
	if len(fused) == 0 {
		r.observeRetrieval("empty")
	} else {
		r.observeRetrieval("ok")
	}
	return nil
}

func (r *Retriever) observeRetrieval(outcome string) {
	if r.Metrics != nil {
		r.Metrics.ObserveRAGRetrieval(outcome)
	}
}

// buildContextString concatenates each retrieved passage's content followed
// by a blank line, or the fixed placeholder when nothing was retrieved.
func buildContextString(hits []scoredHit) string {
	if len(hits) == 0 {
		return noContextRetrievedMessage
	}
	var b strings.Builder
	for _, h := range hits {
		b.WriteString(h.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}
