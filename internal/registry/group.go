package registry

import (
	"fmt"
	"sync"

	"github.com/inferencegate/gateway/internal/gwerrors"
)

// ServerGroup holds every registered Server alongside the set of ids
// currently considered healthy. The healthy set is maintained separately
// from each Server's own health flag so that routing (Next) never has to
// scan for health while holding the servers lock.
type ServerGroup struct {
	mu      sync.RWMutex
	servers []*Server
	healthy map[string]struct{}
}

// NewServerGroup returns an empty group.
func NewServerGroup() *ServerGroup {
	return &ServerGroup{healthy: make(map[string]struct{})}
}

// Register adds a server to the group. It fails if a server with the same id
// is already present in the healthy set, mirroring the original's
// registration guard against duplicate ids.
func (g *ServerGroup) Register(s *Server) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.healthy[s.ID]; exists {
		return gwerrors.Newf(gwerrors.Operation, "server %q is already registered", s.ID)
	}
	g.servers = append(g.servers, s)
	if s.Health().Healthy {
		g.healthy[s.ID] = struct{}{}
	}
	return nil
}

// Unregister removes a server by id. It fails if no server with that id is
// present, using a swap-remove to avoid an O(n) shift.
func (g *ServerGroup) Unregister(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, s := range g.servers {
		if s.ID == id {
			last := len(g.servers) - 1
			g.servers[i] = g.servers[last]
			g.servers = g.servers[:last]
			delete(g.healthy, id)
			return nil
		}
	}
	return fmt.Errorf("server %q not found", id)
}

// List returns a snapshot slice of every registered server (healthy or not).
func (g *ServerGroup) List() []*Server {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Server, len(g.servers))
	copy(out, g.servers)
	return out
}

// Next selects the healthy server with the fewest connections for the given
// capability and returns its target info, incrementing its connection
// counter. When exactly one healthy candidate exists, the scan is skipped.
// Returns gwerrors.NotFoundServer when no healthy server carries the
// capability.
func (g *ServerGroup) Next(capability Capability) (TargetServerInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var candidates []*Server
	for _, s := range g.servers {
		if !s.Kind.Has(capability) {
			continue
		}
		if _, ok := g.healthy[s.ID]; !ok {
			continue
		}
		candidates = append(candidates, s)
	}

	if len(candidates) == 0 {
		return TargetServerInfo{}, gwerrors.NotFoundServerf(capability.String())
	}
	if len(candidates) == 1 {
		chosen := candidates[0]
		chosen.incrementConnections()
		return chosen.targetInfo(), nil
	}

	chosen := candidates[0]
	min := chosen.Connections()
	for _, s := range candidates[1:] {
		if c := s.Connections(); c < min {
			min = c
			chosen = s
		}
	}
	chosen.incrementConnections()
	return chosen.targetInfo(), nil
}

// markHealthy inserts id into the healthy set (used by the health sweeper on
// re-admission).
func (g *ServerGroup) markHealthy(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.healthy[id] = struct{}{}
}

// markUnhealthy removes id from the healthy set.
func (g *ServerGroup) markUnhealthy(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.healthy, id)
}

// IsHealthy reports whether id is currently in the healthy set.
func (g *ServerGroup) IsHealthy(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.healthy[id]
	return ok
}
