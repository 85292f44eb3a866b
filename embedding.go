package ragdoc

import (
	"context"
	"fmt"
	"time"

	"github.com/flarexio/ragdoc/llm"
	"github.com/flarexio/ragdoc/vector"
)

// EmbedTexts embeds all texts in a single remote call. Any failure is an
// upstream error and nothing is returned partially.
func EmbedTexts(ctx context.Context, embedder llm.Embedder, texts []string, timeout time.Duration) ([][]float32, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err.Error())
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedded %d of %d texts", ErrUpstream, len(vectors), len(texts))
	}

	return vectors, nil
}

// QueryEmbeddingFunc adapts an embedder to the single-text form the vector
// store uses for queries.
func QueryEmbeddingFunc(embedder llm.Embedder, timeout time.Duration) vector.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := EmbedTexts(ctx, embedder, []string{text}, timeout)
		if err != nil {
			return nil, err
		}

		return vectors[0], nil
	}
}
