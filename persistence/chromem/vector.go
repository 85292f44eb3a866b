package chromem

import (
	"context"
	"errors"
	"os"

	"github.com/philippgille/chromem-go"

	"github.com/flarexio/ragdoc/vector"
)

var ErrEmbeddingFuncNotSet = errors.New("embedding func not set")

func NewChromemVectorDB(cfg vector.Config, embed vector.EmbeddingFunc) (vector.VectorDB, error) {
	if embed == nil {
		return nil, ErrEmbeddingFuncNotSet
	}

	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, err
		}

		d, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, err
		}

		db = d
	}

	return &chromemVectorDB{db, embed}, nil
}

type chromemVectorDB struct {
	db    *chromem.DB
	embed vector.EmbeddingFunc
}

func (vdb *chromemVectorDB) Collection(name string) (vector.Collection, error) {
	// Persisted collections fall back to the default OpenAI embedder
	// when nil is passed, so the func is always provided.
	c, err := vdb.db.GetOrCreateCollection(name, nil, chromem.EmbeddingFunc(vdb.embed))
	if err != nil {
		return nil, err
	}

	return &collection{c, vdb.embed}, nil
}

type collection struct {
	collection *chromem.Collection
	embed      vector.EmbeddingFunc
}

func (c *collection) AddDocuments(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	documents := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		documents[i] = chromem.Document{
			ID:        doc.ID,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
			Content:   doc.Content,
		}
	}

	return c.collection.AddDocuments(ctx, documents, 1)
}

func (c *collection) FindDocument(ctx context.Context, id string) (vector.Document, error) {
	document, err := c.collection.GetByID(ctx, id)
	if err != nil {
		return vector.Document{}, err
	}

	return vector.Document{
		ID:        document.ID,
		Metadata:  document.Metadata,
		Embedding: document.Embedding,
		Content:   document.Content,
	}, nil
}

func (c *collection) DeleteDocuments(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	return c.collection.Delete(ctx, nil, nil, ids...)
}

func (c *collection) Query(ctx context.Context, query string, k int) ([]vector.Document, error) {
	count := c.collection.Count()
	if count == 0 || k <= 0 {
		return []vector.Document{}, nil
	}

	if k > count {
		k = count
	}

	embedding, err := c.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := c.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	for err != nil {
		// The collection may shrink between Count and the query; retry
		// with the smaller size. k strictly decreases, so this ends.
		count = c.collection.Count()
		if count >= k {
			return nil, err
		}

		if count == 0 {
			return []vector.Document{}, nil
		}

		k = count
		results, err = c.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	}

	docs := make([]vector.Document, len(results))
	for i, result := range results {
		docs[i] = vector.Document{
			ID:         result.ID,
			Metadata:   result.Metadata,
			Embedding:  result.Embedding,
			Content:    result.Content,
			Similarity: result.Similarity,
		}
	}

	return docs, nil
}

func (c *collection) Count() int {
	return c.collection.Count()
}
