package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityRoundTrip(t *testing.T) {
	c := Chat | Image | Transcribe
	s := c.String()
	assert.Equal(t, "chat,image,transcribe", s)

	parsed, err := ParseCapabilitySet(s)
	require.NoError(t, err)
	assert.Equal(t, c, parsed)
}

func TestParseCapabilitySetInvalid(t *testing.T) {
	_, err := ParseCapabilitySet("chat,bogus")
	assert.Error(t, err)
}

func TestNextLeastConnections(t *testing.T) {
	g := NewServerGroup()
	a := NewServer(Chat, "http://a", "")
	b := NewServer(Chat, "http://b", "")
	require.NoError(t, g.Register(a))
	require.NoError(t, g.Register(b))

	// Drive a's connection count up so b should win subsequent selections.
	target, err := g.Next(Chat)
	require.NoError(t, err)
	first := target.ID

	target2, err := g.Next(Chat)
	require.NoError(t, err)
	assert.NotEqual(t, first, target2.ID, "second call should route to the now-least-loaded server")
}

func TestNextSkipsUnhealthy(t *testing.T) {
	g := NewServerGroup()
	a := NewServer(Chat, "http://a", "")
	a.SetHealth(false, a.Health().LastCheck)
	require.NoError(t, g.Register(a))

	_, err := g.Next(Chat)
	assert.Error(t, err)
}

func TestNextNoCapabilityMatch(t *testing.T) {
	g := NewServerGroup()
	a := NewServer(Image, "http://a", "")
	require.NoError(t, g.Register(a))

	_, err := g.Next(Chat)
	assert.Error(t, err)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	g := NewServerGroup()
	a := NewServer(Chat, "http://a", "")
	require.NoError(t, g.Register(a))

	dup := &Server{ID: a.ID, URL: "http://dup", Kind: Chat}
	dup.SetHealth(true, dup.Health().LastCheck)
	err := g.Register(dup)
	assert.Error(t, err)
}

func TestUnregisterMissing(t *testing.T) {
	g := NewServerGroup()
	err := g.Unregister("does-not-exist")
	assert.Error(t, err)
}

func TestUnregisterRemovesFromHealthySet(t *testing.T) {
	g := NewServerGroup()
	a := NewServer(Chat, "http://a", "")
	require.NoError(t, g.Register(a))
	require.True(t, g.IsHealthy(a.ID))

	require.NoError(t, g.Unregister(a.ID))
	assert.False(t, g.IsHealthy(a.ID))
	_, err := g.Next(Chat)
	assert.Error(t, err)
}
