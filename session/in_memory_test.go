package session

import (
	"testing"

	"github.com/hupe1980/agentpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_LazyGet(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Empty(t, sess.GetEvents())
}

func TestInMemoryStore_AppendEvent(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.AppendEvent("s1", core.NewUserMessageEvent("r1", "hello")))
	require.NoError(t, store.AppendEvent("s1", core.NewMessageEvent("Agent", "hi")))

	sess, err := store.Get("s1")
	require.NoError(t, err)

	events := sess.GetEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "hello", events[0].Text())
	assert.Equal(t, "hi", events[1].Text())
}

func TestInMemoryStore_ApplyDelta(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.ApplyDelta("s1", map[string]any{"topic": "compilers"}))

	sess, err := store.Get("s1")
	require.NoError(t, err)

	v, ok := sess.GetState("topic")
	require.True(t, ok)
	assert.Equal(t, "compilers", v)
}

func TestInMemoryStore_ReturnsClones(t *testing.T) {
	store := NewInMemoryStore()

	first, err := store.Get("s1")
	require.NoError(t, err)
	first.SetState("mutated", true)

	second, err := store.Get("s1")
	require.NoError(t, err)

	_, ok := second.GetState("mutated")
	assert.False(t, ok, "mutating a returned session must not affect the store")
}

func TestInMemoryStore_CreateResets(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.AppendEvent("s1", core.NewUserMessageEvent("r1", "hello")))

	sess, err := store.Create("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.GetEvents())
}
