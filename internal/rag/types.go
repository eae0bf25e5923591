package rag

// KeywordHit is one result from a keyword-search-class MCP backend.
type KeywordHit struct {
	Title   string
	Content string
	Score   float64
}

// VectorHit is one result from a vector-search MCP backend (a qdrant
// search_points point), keyed by its source payload string.
type VectorHit struct {
	Source string
	Score  float64
}

// Params are the per-request filter knobs the retriever extracts from a
// chat request's RAG extension fields, with defaults applied for anything
// the caller omits.
type Params struct {
	FilterLimit          int
	FilterScoreThreshold  float64
	WeightedAlpha         float64
	ContextWindow         int
	VDBCollectionNames    []string
	KWSearchIndex         string
	ESSearchIndex         string
	ESSearchFields        []string
	TidbSearchDatabase    string
	TidbSearchTable       string
}

const (
	DefaultFilterLimit          = 10
	DefaultFilterScoreThreshold = 0.5
	DefaultWeightedAlpha        = 0.5
)
