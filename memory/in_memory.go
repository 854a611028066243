package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentpipe/core"
)

// storedMemory is the internal record persisted by InMemoryStore. It mirrors
// core.SearchResult without a score field; scoring is constant here.
type storedMemory struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// InMemoryStore is a process local MemoryStore offering:
//  1. Session scoped key/value memory (Get / Put)
//  2. Append-only stored memories with substring Search
//
// Search is a linear scan with case-insensitive substring matching and a
// constant score of 1.0 per hit. Suitable for tests and demos; swap for a
// vector index for production retrieval.
type InMemoryStore struct {
	mu      sync.RWMutex
	memory  map[string]map[string]any          // sessionID -> key -> value
	storage map[string]map[string]storedMemory // sessionID -> memoryID -> record
}

// NewInMemoryStore creates an empty in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memory:  make(map[string]map[string]any),
		storage: make(map[string]map[string]storedMemory),
	}
}

// Get returns a shallow copy of the key/value memory map for the session.
func (m *InMemoryStore) Get(sessionID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessionMemory, ok := m.memory[sessionID]
	if !ok {
		return make(map[string]any), nil
	}

	result := make(map[string]any, len(sessionMemory))
	for k, v := range sessionMemory {
		result[k] = v
	}
	return result, nil
}

// Put merges the provided delta map into the session's key/value memory.
func (m *InMemoryStore) Put(sessionID string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.memory[sessionID]; !ok {
		m.memory[sessionID] = make(map[string]any)
	}
	for k, v := range delta {
		m.memory[sessionID][k] = v
	}
	return nil
}

// Search performs a case-insensitive substring match over stored memories.
// Results are returned in unspecified order up to limit, each with a constant
// score of 1.0.
func (m *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessionStorage, ok := m.storage[sessionID]
	if !ok {
		return []core.SearchResult{}, nil
	}

	loweredQuery := strings.ToLower(query)

	results := make([]core.SearchResult, 0, limit)
	for _, stored := range sessionStorage {
		if limit > 0 && len(results) >= limit {
			break
		}
		if query != "" && !strings.Contains(strings.ToLower(stored.Content), loweredQuery) {
			continue
		}

		md := make(map[string]any, len(stored.Metadata))
		for k, v := range stored.Metadata {
			md[k] = v
		}
		results = append(results, core.SearchResult{
			ID:       stored.ID,
			Content:  stored.Content,
			Score:    1.0,
			Metadata: md,
		})
	}
	return results, nil
}

// Store appends a new memory record with a generated id.
func (m *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.storage[sessionID]; !ok {
		m.storage[sessionID] = make(map[string]storedMemory)
	}

	memoryID := core.NewID()
	m.storage[sessionID][memoryID] = storedMemory{ID: memoryID, Content: content, Metadata: metadata}
	return nil
}

// Delete removes a stored memory entry by id.
func (m *InMemoryStore) Delete(sessionID string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionStorage, ok := m.storage[sessionID]
	if !ok {
		return fmt.Errorf("memory not found")
	}
	if _, ok := sessionStorage[memoryID]; !ok {
		return fmt.Errorf("memory not found")
	}
	delete(sessionStorage, memoryID)
	return nil
}
