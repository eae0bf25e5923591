package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/inferencegate/gateway/internal/gwerrors"
	"github.com/inferencegate/gateway/internal/mcpadapter"
	"github.com/inferencegate/gateway/internal/registry"
)

// Known keyword-search MCP backend kinds, matched against the configured
// service's own Name.
const (
	backendGaiaKeywordSearch = "gaia-keyword-search"
	backendGaiaElasticSearch = "gaia-elastic-search"
	backendGaiaTidbSearch    = "gaia-tidb-search"
)

const keywordExtractionPromptTemplate = "Extract the keywords from the following text. The keywords should be separated by spaces.\n\nText: %s"

// KeywordSearch dispatches to whichever keyword-search-class backend is
// configured, tagged by its own service name. Returns (nil, nil) when no
// keyword-search service is connected — RAG degrades gracefully rather than
// failing the whole request.
func KeywordSearch(ctx context.Context, mcp *mcpadapter.Client, mcpReg *mcpadapter.Registry, group *registry.ServerGroup, httpClient *http.Client, serviceName, text string, params Params) ([]KeywordHit, error) {
	if serviceName == "" {
		return nil, nil
	}
	svc, ok := mcpReg.ServiceByName(serviceName)
	if !ok {
		return nil, nil
	}

	switch svc.Name {
	case backendGaiaKeywordSearch:
		keywords, err := extractKeywordsByLLM(ctx, group, httpClient, text)
		if err != nil {
			return nil, err
		}
		if params.KWSearchIndex == "" {
			return nil, gwerrors.New(gwerrors.BadRequest, "kw_search_index field is required for kw-search-server")
		}
		result, err := mcp.CallTool(ctx, svc.Name, "search_documents", map[string]any{
			"index_name": params.KWSearchIndex,
			"query":      keywords,
			"limit":      params.FilterLimit,
		})
		if err != nil {
			return nil, err
		}
		return parseSearchDocumentsResponse(result.Text)

	case backendGaiaElasticSearch:
		if params.ESSearchIndex == "" {
			return nil, gwerrors.New(gwerrors.BadRequest, "es_search_index field is required for Elasticsearch server")
		}
		if len(params.ESSearchFields) == 0 {
			return nil, gwerrors.New(gwerrors.BadRequest, "es_search_fields field is required for Elasticsearch server")
		}
		result, err := mcp.CallTool(ctx, svc.Name, "search", map[string]any{
			"index":  params.ESSearchIndex,
			"query":  text,
			"fields": params.ESSearchFields,
			"size":   params.FilterLimit,
		})
		if err != nil {
			return nil, err
		}
		return parseElasticSearchResponse(result.Text)

	case backendGaiaTidbSearch:
		keywords, err := extractKeywordsByLLM(ctx, group, httpClient, text)
		if err != nil {
			return nil, err
		}
		if params.TidbSearchDatabase == "" {
			return nil, gwerrors.New(gwerrors.BadRequest, "tidb_search_database field is required for tidb-search-server")
		}
		if params.TidbSearchTable == "" {
			return nil, gwerrors.New(gwerrors.BadRequest, "tidb_search_table field is required for tidb-search-server")
		}
		result, err := mcp.CallTool(ctx, svc.Name, "search", map[string]any{
			"database":   params.TidbSearchDatabase,
			"table_name": params.TidbSearchTable,
			"limit":      params.FilterLimit,
			"query":      keywords,
		})
		if err != nil {
			return nil, err
		}
		return parseTidbSearchResponse(result.Text)

	default:
		return nil, gwerrors.Newf(gwerrors.Operation, "unsupported keyword search mcp server: %s", svc.Name)
	}
}

// extractKeywordsByLLM asks the chat backend itself to reduce free text to a
// space-separated keyword string, used as the query for backends that need
// discrete terms rather than a natural-language sentence.
func extractKeywordsByLLM(ctx context.Context, group *registry.ServerGroup, httpClient *http.Client, text string) (string, error) {
	target, err := group.Next(registry.Chat)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(keywordExtractionPromptTemplate, text)
	payload, _ := json.Marshal(map[string]any{
		"messages": []map[string]string{{"role": "user", "content": prompt}},
		"stream":   false,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.JoinPath("/chat/completions"), bytes.NewReader(payload))
	if err != nil {
		return "", gwerrors.Newf(gwerrors.Operation, "build keyword extraction request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if target.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+target.APIKey)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return "", gwerrors.Newf(gwerrors.Operation, "keyword extraction dispatch failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", gwerrors.Newf(gwerrors.Operation, "read keyword extraction response: %v", err)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", gwerrors.Newf(gwerrors.Operation, "decode keyword extraction response: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return "", gwerrors.New(gwerrors.Operation, "keyword extraction returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func parseSearchDocumentsResponse(text string) ([]KeywordHit, error) {
	var parsed struct {
		Hits []struct {
			Title   string  `json:"title"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"hits"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "decode search_documents result: %v", err)
	}
	hits := make([]KeywordHit, 0, len(parsed.Hits))
	for _, h := range parsed.Hits {
		hits = append(hits, KeywordHit{Title: h.Title, Content: h.Content, Score: h.Score})
	}
	return hits, nil
}

func parseElasticSearchResponse(text string) ([]KeywordHit, error) {
	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"score"`
				Source struct {
					Title   string `json:"title"`
					Content string `json:"content"`
				} `json:"source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "decode elastic search result: %v", err)
	}
	hits := make([]KeywordHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, KeywordHit{Title: h.Source.Title, Content: h.Source.Content, Score: h.Score})
	}
	return hits, nil
}

func parseTidbSearchResponse(text string) ([]KeywordHit, error) {
	var parsed struct {
		Hits []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"hits"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, gwerrors.Newf(gwerrors.Operation, "decode tidb search result: %v", err)
	}
	hits := make([]KeywordHit, 0, len(parsed.Hits))
	for _, h := range parsed.Hits {
		// tidb-search never reports its own relevance score.
		hits = append(hits, KeywordHit{Title: h.Title, Content: h.Content, Score: 0.0})
	}
	return hits, nil
}
