package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckServerMarksUnhealthyOnFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	g := NewServerGroup()
	s := NewServer(Chat, ts.URL, "")
	require.NoError(t, g.Register(s))

	m := NewHealthMonitor(g, time.Minute, nil)
	m.checkServer(context.Background(), s)

	assert.False(t, g.IsHealthy(s.ID))
	assert.False(t, s.Health().Healthy)
}

func TestCheckServerKeepsHealthyOnRequestTimeoutStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestTimeout)
	}))
	defer ts.Close()

	g := NewServerGroup()
	s := NewServer(Chat, ts.URL, "")
	require.NoError(t, g.Register(s))

	m := NewHealthMonitor(g, time.Minute, nil)
	m.checkServer(context.Background(), s)

	assert.True(t, g.IsHealthy(s.ID))
	assert.True(t, s.Health().Healthy)
}

func TestCheckServerReadmitsRecoveredServer(t *testing.T) {
	g := NewServerGroup()
	s := NewServer(Chat, "http://unreachable.invalid", "")
	require.NoError(t, g.Register(s))

	m := NewHealthMonitor(g, time.Minute, nil)
	m.setUnhealthy(s)
	require.False(t, g.IsHealthy(s.ID))

	m.setHealthy(s, time.Now())
	assert.True(t, g.IsHealthy(s.ID))
}

func TestSweepInvokesOnSweepWithHealthyCounts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	g := NewServerGroup()
	chatSrv := NewServer(Chat, ts.URL, "")
	dualSrv := NewServer(Chat|Embeddings, ts.URL, "")
	require.NoError(t, g.Register(chatSrv))
	require.NoError(t, g.Register(dualSrv))

	m := NewHealthMonitor(g, time.Minute, nil)
	var seen map[string]int
	m.OnSweep = func(byCapability map[string]int) { seen = byCapability }

	m.sweep(context.Background())

	require.NotNil(t, seen)
	assert.Equal(t, 2, seen["chat"])
	assert.Equal(t, 1, seen["embeddings"])
	assert.Equal(t, 0, seen["image"])
}
