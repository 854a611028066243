package core

// ArtifactStore defines the interface for artifact persistence.
// Implementations should be thread-safe and scope artifacts by session
// identifier. Short method names (Save/Get/List/Delete) mirror the other
// *Store interfaces.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}

// MemoryStore defines persistence + retrieval (search) for conversational
// memory snippets. Implementations can back Search with embeddings, keywords
// or any heuristic.
type MemoryStore interface {
	Get(sessionID string) (map[string]any, error)
	Put(sessionID string, delta map[string]any) error
	Search(sessionID string, query string, limit int) ([]SearchResult, error)
	Store(sessionID string, content string, metadata map[string]any) error
	Delete(sessionID string, memoryID string) error
}

// SearchResult represents a retrieved memory item with a relevance score and
// arbitrary metadata.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}
