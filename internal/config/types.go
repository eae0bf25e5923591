// Package config loads the gateway's TOML configuration file: env-var
// expansion, typed unmarshal, default-merge with mergo, then dedicated
// validation.
package config

// RAGPolicy selects how retrieved context is merged into the outgoing chat
// request.
type RAGPolicy string

const (
	PolicySystemMessage  RAGPolicy = "system_message"
	PolicyLastUserMessage RAGPolicy = "last_user_message"
)

// ServerSection is the `[server]` table.
type ServerSection struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RAGSection is the optional `[rag]` table.
type RAGSection struct {
	Enable        bool      `toml:"enable"`
	Policy        RAGPolicy `toml:"policy"`
	ContextWindow int       `toml:"context_window"`
	Prompt        string    `toml:"prompt,omitempty"`

	// KeywordSearchService/VectorSearchService name which configured
	// [[mcp.server.tool]] entry plays each retrieval role, replacing the
	// original's process-wide MCP_KEYWORD_SEARCH_CLIENT/MCP_VECTOR_SEARCH_CLIENT
	// globals with an explicit, config-driven role assignment.
	KeywordSearchService string `toml:"keyword_search_service,omitempty"`
	VectorSearchService  string `toml:"vector_search_service,omitempty"`
}

// MCPServerToolSection is one entry of `[[mcp.server.tool]]`.
type MCPServerToolSection struct {
	Name      string            `toml:"name"`
	Transport string            `toml:"transport"` // sse | stdio | stream-http
	URL       string            `toml:"url"`
	Enable    bool              `toml:"enable"`
	Command   string            `toml:"command,omitempty"`
	Args      []string          `toml:"args,omitempty"`
	Env       map[string]string `toml:"env,omitempty"`
	Fallback  string            `toml:"fallback_message,omitempty"`
}

// MCPSection is the `[mcp]` table.
type MCPSection struct {
	Server struct {
		Tool []MCPServerToolSection `toml:"tool"`
	} `toml:"server"`
}

// fileConfig is the raw shape unmarshaled straight from TOML, before
// defaults are merged in.
type fileConfig struct {
	Server             ServerSection `toml:"server"`
	RAG                *RAGSection   `toml:"rag"`
	ServerInfoPushURL  string        `toml:"server_info_push_url"`
	ServerHealthPushURL string       `toml:"server_health_push_url"`
	MCP                MCPSection    `toml:"mcp"`
}

// Config is the fully-resolved, ready-to-use configuration.
type Config struct {
	Server              ServerSection
	RAG                 RAGSection
	ServerInfoPushURL   string
	ServerHealthPushURL string
	MCPServers          []MCPServerToolSection
	HealthCheckInterval int // seconds, from HEALTH_CHECK_INTERVAL env var
}
