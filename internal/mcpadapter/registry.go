package mcpadapter

import (
	"encoding/json"
	"log/slog"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultSearchFallbackMessage is returned to the model when a search-like
// MCP tool's context is empty and the service declares no fallback of its
// own.
const DefaultSearchFallbackMessage = "I'm unable to retrieve the necessary information to answer your question right now. Please try rephrasing or asking about something else."

// DefaultSearchServiceNames names the MCP services whose results are wrapped
// as retrieved context rather than returned as plain tool output. Overridable
// at runtime via Registry.SetSearchServiceNames; the config file has no
// setting for it.
var DefaultSearchServiceNames = []string{
	"cardea-agentic-search-mcp-server",
	"cardea-tidb-mcp-server",
	"cardea-qdrant-mcp-server",
	"cardea-elastic-mcp-server",
	"cardea-kwsearch-mcp-server",
}

// ToolInfo is the adapter-level shape of one MCP-advertised tool: enough to
// build an OpenAI-style function-tool descriptor without reaching back into
// the SDK's session state.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Service is one connected MCP server: its session, advertised tools, and
// optional fallback message for empty search results.
type Service struct {
	Name            string
	Session         *mcpsdk.ClientSession
	Tools           []ToolInfo
	FallbackMessage string
}

// ToolNames returns just the name of each advertised tool, for callers that
// only need the tool_name → service_name indexing, not the full schema.
func (s *Service) ToolNames() []string {
	names := make([]string, len(s.Tools))
	for i, t := range s.Tools {
		names[i] = t.Name
	}
	return names
}

// HasFallbackMessage reports whether a non-empty fallback was configured.
func (s *Service) HasFallbackMessage() bool {
	return s.FallbackMessage != ""
}

// Registry holds two process-wide mappings: tool_name → service_name, and
// service_name → Service. Mutations happen only at connect time (startup, and
// when CallTool recreates a session); reads happen on every tool-call-loop iteration, so both
// maps are guarded by a single RWMutex rather than per-entry locks, treating
// the map as read-mostly.
type Registry struct {
	mu                sync.RWMutex
	toolToService     map[string]string
	services          map[string]*Service
	searchServiceNames map[string]struct{}

	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	search := make(map[string]struct{}, len(DefaultSearchServiceNames))
	for _, n := range DefaultSearchServiceNames {
		search[n] = struct{}{}
	}
	return &Registry{
		toolToService:      make(map[string]string),
		services:           make(map[string]*Service),
		searchServiceNames: search,
		logger:             logger.With("component", "mcp_registry"),
	}
}

// SetSearchServiceNames replaces the default search-service set with names.
func (r *Registry) SetSearchServiceNames(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchServiceNames = make(map[string]struct{}, len(names))
	for _, n := range names {
		r.searchServiceNames[n] = struct{}{}
	}
}

// IsSearchService reports whether name is in the configured search-service
// set.
func (r *Registry) IsSearchService(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.searchServiceNames[name]
	return ok
}

// registerService stores a connected service and indexes its tools into the
// tool_name → service_name map, last-writer-wins on conflict (logged).
func (r *Registry) registerService(svc *Service) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.services[svc.Name] = svc
	for _, tool := range svc.Tools {
		if existing, ok := r.toolToService[tool.Name]; ok && existing != svc.Name {
			r.logger.Warn("tool name already registered, overwriting", "tool", tool.Name, "previous_service", existing, "service", svc.Name)
		}
		r.toolToService[tool.Name] = svc.Name
	}
}

// ServiceForTool resolves a tool name to its owning service, or (nil, false)
// if unknown.
func (r *Registry) ServiceForTool(tool string) (*Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.toolToService[tool]
	if !ok {
		return nil, false
	}
	return r.services[name], true
}

// ServiceByName looks up a connected service by its own name.
func (r *Registry) ServiceByName(name string) (*Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc, ok
}

// Services returns a snapshot of every connected service, used by the
// orchestrator to build tool-augmentation descriptors.
func (r *Registry) Services() []*Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Service, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	return out
}
