// Package mock provides deterministic in-process stand-ins for the remote
// embedding and generation capabilities.
package mock

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/flarexio/ragdoc/llm"
)

const DefaultDimension = 256

// Embedder is a bag-of-words embedder. Every distinct lower-cased word gets
// its own dimension in first-seen order, so texts sharing words are similar.
type Embedder struct {
	Err error

	dim   int
	vocab map[string]int
	calls int
	mu    sync.Mutex
}

func NewEmbedder(dim ...int) *Embedder {
	d := DefaultDimension
	if len(dim) > 0 && dim[0] > 0 {
		d = dim[0]
	}

	return &Embedder{
		dim:   d,
		vocab: make(map[string]int),
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++

	if e.Err != nil {
		return nil, e.Err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.vectorize(text)
	}

	return vectors, nil
}

// EmbedQuery matches the single-text embedding func the vector store uses.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vectors[0], nil
}

func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.calls
}

func (e *Embedder) vectorize(text string) []float32 {
	vec := make([]float32, e.dim)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, w := range words {
		idx, ok := e.vocab[w]
		if !ok {
			idx = len(e.vocab) % e.dim
			e.vocab[w] = idx
		}

		vec[idx]++
	}

	// zero vectors cannot be normalized
	if len(words) == 0 {
		vec[e.dim-1] = 1
	}

	return vec
}

// Generator returns a canned answer and records how it was called.
type Generator struct {
	Answer string
	Err    error

	calls int
	last  []llm.Message
	mu    sync.Mutex
}

func NewGenerator(answer string) *Generator {
	return &Generator{Answer: answer}
}

func (g *Generator) Generate(ctx context.Context, messages []llm.Message, temperature float32) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	g.last = append([]llm.Message(nil), messages...)

	if g.Err != nil {
		return "", g.Err
	}

	return g.Answer, nil
}

func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.calls
}

func (g *Generator) LastMessages() []llm.Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]llm.Message(nil), g.last...)
}
