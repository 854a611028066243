package session

import (
	"path/filepath"
	"testing"

	"github.com/hupe1980/agentpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStoreForTest(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSQLiteStore_RoundTripEvents(t *testing.T) {
	store := newSQLiteStoreForTest(t)

	require.NoError(t, store.AppendEvent("s1", core.NewUserMessageEvent("r1", "write a sort function")))
	require.NoError(t, store.AppendEvent("s1", core.NewMessageEvent("CodeWriter", "func sort() {}")))

	sess, err := store.Get("s1")
	require.NoError(t, err)

	events := sess.GetEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "write a sort function", events[0].Text())
	assert.Equal(t, "user", events[0].Author)
	assert.Equal(t, "func sort() {}", events[1].Text())
	assert.Equal(t, "CodeWriter", events[1].Author)
}

func TestSQLiteStore_RoundTripFunctionCalls(t *testing.T) {
	store := newSQLiteStoreForTest(t)

	callEv := core.NewFunctionCallEvent("Agent", "web_search", `{"query":"golang"}`)
	require.NoError(t, store.AppendEvent("s1", callEv))

	respEv := core.NewFunctionResponseEvent("Agent", callEv.GetFunctionCalls()[0].ID, "web_search", map[string]any{"count": 3}, nil)
	require.NoError(t, store.AppendEvent("s1", respEv))

	sess, err := store.Get("s1")
	require.NoError(t, err)

	events := sess.GetEvents()
	require.Len(t, events, 2)

	calls := events[0].GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "web_search", calls[0].Name)
	assert.Equal(t, `{"query":"golang"}`, calls[0].Arguments)

	responses := events[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "web_search", responses[0].Name)
}

func TestSQLiteStore_ApplyDelta(t *testing.T) {
	store := newSQLiteStoreForTest(t)

	require.NoError(t, store.ApplyDelta("s1", map[string]any{"generated_code": "x := 1"}))
	require.NoError(t, store.ApplyDelta("s1", map[string]any{"review_comments": "looks fine"}))

	sess, err := store.Get("s1")
	require.NoError(t, err)

	v, ok := sess.GetState("generated_code")
	require.True(t, ok)
	assert.Equal(t, "x := 1", v)

	v, ok = sess.GetState("review_comments")
	require.True(t, ok)
	assert.Equal(t, "looks fine", v)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent("s1", core.NewUserMessageEvent("r1", "hello")))
	require.NoError(t, store.ApplyDelta("s1", map[string]any{"k": "v"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	sess, err := reopened.Get("s1")
	require.NoError(t, err)
	require.Len(t, sess.GetEvents(), 1)

	v, ok := sess.GetState("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestSQLiteStore_CreateResets(t *testing.T) {
	store := newSQLiteStoreForTest(t)

	require.NoError(t, store.AppendEvent("s1", core.NewUserMessageEvent("r1", "hello")))

	sess, err := store.Create("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.GetEvents())

	loaded, err := store.Get("s1")
	require.NoError(t, err)
	assert.Empty(t, loaded.GetEvents())
}
