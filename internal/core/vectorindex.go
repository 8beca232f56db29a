package core

import "context"

// ScoredChunk is one ranked similarity-search hit.
type ScoredChunk struct {
	Text     string
	Metadata map[string]any
	Distance float64
}

// Collection is a handle to one tenant's partition of the vector index.
type Collection interface {
	// Upsert writes documents with their ids and metadata. The index computes
	// embeddings internally.
	Upsert(ctx context.Context, ids []string, documents []string, metadatas []map[string]any) error
	Count(ctx context.Context) (int, error)
	Query(ctx context.Context, text string, k int) ([]ScoredChunk, error)
}

// VectorIndex abstracts the vector store so higher layers never depend on a
// specific backend.
type VectorIndex interface {
	GetOrCreate(ctx context.Context, name string) (Collection, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
}
