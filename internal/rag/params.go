package rag

import (
	"encoding/json"

	"github.com/inferencegate/gateway/internal/config"
	"github.com/inferencegate/gateway/internal/orchestrator"
)

// ParamsFromRequest extracts the RAG filter and backend-hint fields carried
// in a chat request's extension map, falling back to the configured context
// window when the request omits one.
func ParamsFromRequest(req *orchestrator.Request, cfg config.RAGSection) Params {
	p := Params{
		FilterLimit:          DefaultFilterLimit,
		FilterScoreThreshold: DefaultFilterScoreThreshold,
		WeightedAlpha:        DefaultWeightedAlpha,
		ContextWindow:        cfg.ContextWindow,
	}

	if v, ok := req.Extra["limit"]; ok {
		_ = json.Unmarshal(v, &p.FilterLimit)
	}
	if v, ok := req.Extra["score_threshold"]; ok {
		_ = json.Unmarshal(v, &p.FilterScoreThreshold)
	}
	if v, ok := req.Extra["weighted_alpha"]; ok {
		_ = json.Unmarshal(v, &p.WeightedAlpha)
	}
	if v, ok := req.Extra["context_window"]; ok {
		_ = json.Unmarshal(v, &p.ContextWindow)
	}
	if p.ContextWindow <= 0 {
		p.ContextWindow = 1
	}

	if v, ok := req.Extra["vdb_collection_name"]; ok {
		var names []string
		if err := json.Unmarshal(v, &names); err == nil {
			p.VDBCollectionNames = names
		} else {
			var single string
			if err := json.Unmarshal(v, &single); err == nil && single != "" {
				p.VDBCollectionNames = []string{single}
			}
		}
	}
	if v, ok := req.Extra["kw_search_index"]; ok {
		_ = json.Unmarshal(v, &p.KWSearchIndex)
	}
	if v, ok := req.Extra["es_search_index"]; ok {
		_ = json.Unmarshal(v, &p.ESSearchIndex)
	}
	if v, ok := req.Extra["es_search_fields"]; ok {
		_ = json.Unmarshal(v, &p.ESSearchFields)
	}
	if v, ok := req.Extra["tidb_search_database"]; ok {
		_ = json.Unmarshal(v, &p.TidbSearchDatabase)
	}
	if v, ok := req.Extra["tidb_search_table"]; ok {
		_ = json.Unmarshal(v, &p.TidbSearchTable)
	}

	return p
}
