package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/inferencegate/gateway/internal/gwerrors"
	"github.com/inferencegate/gateway/internal/mcpadapter"
	"github.com/inferencegate/gateway/internal/registry"
)

// VectorSearch computes an embedding for queryText by forwarding a
// synthesized embeddings request through the same routing used for ordinary
// embeddings traffic, then queries search_points on the configured vector
// service once per collection name, concatenating hits and dropping
// duplicate points (same source string), retaining the first occurrence.
// Returns (nil, nil) when no vector-search service is connected.
func VectorSearch(ctx context.Context, mcp *mcpadapter.Client, mcpReg *mcpadapter.Registry, group *registry.ServerGroup, httpClient *http.Client, serviceName, queryText string, params Params) ([]VectorHit, error) {
	if serviceName == "" {
		return nil, nil
	}
	svc, ok := mcpReg.ServiceByName(serviceName)
	if !ok {
		return nil, nil
	}
	if len(params.VDBCollectionNames) == 0 {
		return nil, gwerrors.New(gwerrors.BadRequest, "vdb_collection_name field is required for vector search")
	}

	embedding, err := computeEmbedding(ctx, group, httpClient, queryText)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var hits []VectorHit
	for _, collection := range params.VDBCollectionNames {
		result, err := mcp.CallTool(ctx, svc.Name, "search_points", map[string]any{
			"name":            collection,
			"vector":          embedding,
			"limit":           params.FilterLimit,
			"score_threshold": params.FilterScoreThreshold,
		})
		if err != nil {
			return nil, err
		}

		points, err := parseSearchPointsResponse(result.Text)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			if _, dup := seen[p.Source]; dup {
				continue
			}
			seen[p.Source] = struct{}{}
			hits = append(hits, p)
		}
	}
	return hits, nil
}

func computeEmbedding(ctx context.Context, group *registry.ServerGroup, httpClient *http.Client, text string) ([]float64, error) {
	target, err := group.Next(registry.Embeddings)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]any{"input": text})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.JoinPath("/embeddings"), bytes.NewReader(payload))
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "build embeddings request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if target.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+target.APIKey)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "embeddings dispatch failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "read embeddings response: %v", err)
	}

	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "decode embeddings response: %v", err)
	}
	if len(parsed.Data) == 0 {
		return nil, gwerrors.New(gwerrors.Operation, "no embeddings returned")
	}
	return parsed.Data[0].Embedding, nil
}

func parseSearchPointsResponse(text string) ([]VectorHit, error) {
	var parsed struct {
		Points []struct {
			Source string  `json:"source"`
			Score  float64 `json:"score"`
		} `json:"points"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "decode search_points result: %v", err)
	}
	hits := make([]VectorHit, 0, len(parsed.Points))
	for _, p := range parsed.Points {
		hits = append(hits, VectorHit{Source: p.Source, Score: p.Score})
	}
	return hits, nil
}
