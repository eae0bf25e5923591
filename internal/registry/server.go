package registry

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// HealthStatus tracks the last health-probe outcome for a Server.
type HealthStatus struct {
	Healthy   bool
	LastCheck time.Time
}

// Server is one downstream inference target within a ServerGroup.
// connections is a monotonically-incrementing load counter, never reset on
// read — it exists purely to break ties in least-connections routing, not to
// report instantaneous concurrency.
type Server struct {
	ID     string
	URL    string
	APIKey string
	Kind   Capability

	connections atomic.Uint64

	mu     sync.RWMutex
	health HealthStatus
}

// NewServer builds a Server with a generated id of the form
// "<kind>-server-<uuid>" and a health status that defaults to healthy, so a
// freshly-registered server is immediately eligible for routing.
func NewServer(kind Capability, url, apiKey string) *Server {
	return &Server{
		ID:     fmt.Sprintf("%s-server-%s", kindTag(kind), uuid.NewString()),
		URL:    url,
		APIKey: apiKey,
		Kind:   kind,
		health: HealthStatus{Healthy: true, LastCheck: time.Time{}},
	}
}

func kindTag(kind Capability) string {
	if s := kind.String(); s != "" {
		return s
	}
	return "unknown"
}

// Health returns a snapshot of the current health status.
func (s *Server) Health() HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// SetHealth records a new health status.
func (s *Server) SetHealth(healthy bool, checkedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = HealthStatus{Healthy: healthy, LastCheck: checkedAt}
}

// Connections returns the current load counter value.
func (s *Server) Connections() uint64 {
	return s.connections.Load()
}

// incrementConnections bumps the load counter and returns the new value.
func (s *Server) incrementConnections() uint64 {
	return s.connections.Add(1)
}

// TargetServerInfo is the routing decision handed to the caller of Next: the
// minimal information needed to dial the chosen server.
type TargetServerInfo struct {
	ID     string
	URL    string
	APIKey string
}

func (s *Server) targetInfo() TargetServerInfo {
	return TargetServerInfo{ID: s.ID, URL: s.URL, APIKey: s.APIKey}
}

// JoinPath concatenates the target's base URL with suffix, trimming any
// trailing slash from the base first so a server registered with one (e.g.
// "http://host:8080/") doesn't yield a double slash upstream.
func (t TargetServerInfo) JoinPath(suffix string) string {
	return strings.TrimRight(t.URL, "/") + suffix
}
