package vector

import "context"

type Config struct {
	Persistent bool   `yaml:"persistent"`
	Path       string `yaml:"path"`
	Compress   bool   `yaml:"compress"`
}

// EmbeddingFunc turns a single text into its embedding vector. The store
// uses it to embed query text.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

type VectorDB interface {
	// Collection returns the named collection, creating it if absent.
	Collection(name string) (Collection, error)
}

type Collection interface {
	// AddDocuments upserts documents by ID. Documents without an embedding
	// are embedded by the store.
	AddDocuments(ctx context.Context, docs []Document) error
	FindDocument(ctx context.Context, id string) (Document, error)
	DeleteDocuments(ctx context.Context, ids ...string) error
	Query(ctx context.Context, query string, k int) ([]Document, error)
	Count() int
}

type Document struct {
	ID         string            `json:"id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Similarity float32           `json:"similarity,omitempty"`
}
