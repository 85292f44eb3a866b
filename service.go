package ragdoc

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/flarexio/ragdoc/llm"
	"github.com/flarexio/ragdoc/vector"
)

// Service defines the core logic of ragdoc.
type Service interface {

	// Close releases the resources held by the service.
	Close() error

	// Stats returns the number of chunks stored for the client.
	Stats(ctx context.Context, client string) (int, error)

	// Search returns the chunks most similar to the query, without generation.
	Search(ctx context.Context, client string, query string, k ...int) ([]Hit, error)

	// Ingest splits a base64-encoded document into chunks, embeds them and
	// stores them in the client's partition. It returns the number of chunks.
	Ingest(ctx context.Context, client string, filename string, contentB64 string) (int, error)

	// Ask answers a question from the client's most similar chunks.
	Ask(ctx context.Context, client string, question string, k ...int) (*Answer, error)
}

type ServiceMiddleware func(Service) Service

func NewService(cfg Config, db vector.VectorDB, embedder llm.Embedder, generator llm.Generator) (Service, error) {
	if db == nil {
		return nil, ErrVectorDBNotSet
	}

	def := DefaultConfig()

	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = def.CollectionPrefix
	}

	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = def.DefaultTopK
	}

	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = def.MaxTopK
	}

	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = def.SnippetLength
	}

	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}

	log := zap.L().With(
		zap.String("service", "ragdoc"),
	)

	return &service{
		db:        db,
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
		log:       log,
	}, nil
}

type service struct {
	// Vector database (thread-safe by itself)
	db vector.VectorDB

	embedder  llm.Embedder
	generator llm.Generator

	cfg Config
	log *zap.Logger
}

func (svc *service) Close() error {
	return nil
}

func (svc *service) partition(client string) (vector.Collection, error) {
	if client == "" {
		return nil, ErrInvalidClient
	}

	name := PartitionName(svc.cfg.CollectionPrefix, client)
	return svc.db.Collection(name)
}

func (svc *service) topK(k ...int) int {
	n := svc.cfg.DefaultTopK
	if len(k) > 0 && k[0] > 0 {
		n = k[0]
	}

	if n > svc.cfg.MaxTopK {
		n = svc.cfg.MaxTopK
	}

	return n
}

func (svc *service) retrieve(ctx context.Context, client string, query string, k ...int) ([]vector.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}

	collection, err := svc.partition(client)
	if err != nil {
		return nil, err
	}

	return collection.Query(ctx, query, svc.topK(k...))
}

func (svc *service) Stats(ctx context.Context, client string) (int, error) {
	collection, err := svc.partition(client)
	if err != nil {
		return 0, err
	}

	return collection.Count(), nil
}

func (svc *service) Search(ctx context.Context, client string, query string, k ...int) ([]Hit, error) {
	docs, err := svc.retrieve(ctx, client, query, k...)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(docs))
	for i, doc := range docs {
		hits[i] = Hit{
			Filename: filenameOf(doc),
			Preview:  truncate(doc.Content, svc.cfg.SnippetLength),
		}
	}

	return hits, nil
}

func (svc *service) Ingest(ctx context.Context, client string, filename string, contentB64 string) (int, error) {
	if client == "" {
		return 0, ErrInvalidClient
	}

	if filename == "" {
		return 0, ErrInvalidFilename
	}

	raw, err := decodeBase64(contentB64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidEncoding, err.Error())
	}

	// invalid byte sequences are dropped, not fatal
	text := strings.ToValidUTF8(string(raw), "")

	texts := SplitParagraphs(text)
	if len(texts) == 0 {
		return 0, ErrNoContent
	}

	// Embedding completes before anything is written to the partition.
	embeddings, err := EmbedTexts(ctx, svc.embedder, texts, svc.cfg.EmbedTimeout.Duration())
	if err != nil {
		return 0, err
	}

	collection, err := svc.partition(client)
	if err != nil {
		return 0, err
	}

	docs := make([]vector.Document, len(texts))
	for i, text := range texts {
		chunk := Chunk{
			Filename: filename,
			Index:    i,
			Text:     text,
		}

		docs[i] = chunk.ToDocument(embeddings[i])
	}

	// Upsert before purging, so the partition never loses the file while
	// its new chunks are being written.
	if err := collection.AddDocuments(ctx, docs); err != nil {
		return 0, err
	}

	if svc.cfg.PurgeStale {
		purged, err := svc.purgeStale(ctx, collection, filename, len(docs))
		if err != nil {
			return 0, err
		}

		if purged > 0 {
			svc.log.Debug("stale chunks purged",
				zap.String("client", client),
				zap.String("filename", filename),
				zap.Int("purged", purged),
			)
		}
	}

	return len(docs), nil
}

func (svc *service) Ask(ctx context.Context, client string, question string, k ...int) (*Answer, error) {
	docs, err := svc.retrieve(ctx, client, question, k...)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return &Answer{
			Answer:  NotFoundAnswer,
			Sources: []Source{},
		}, nil
	}

	var block strings.Builder
	sources := make([]Source, len(docs))
	for i, doc := range docs {
		rank := i + 1
		filename := filenameOf(doc)

		fmt.Fprintf(&block, "[%d] %s\n%s\n\n", rank, filename, doc.Content)

		sources[i] = Source{
			ID:       rank,
			Filename: filename,
			Snippet:  truncate(doc.Content, svc.cfg.SnippetLength),
		}
	}

	answer, err := svc.generate(ctx, question, block.String())
	if err != nil {
		return nil, err
	}

	return &Answer{
		Answer:  answer,
		Sources: sources,
	}, nil
}

func (svc *service) generate(ctx context.Context, question string, block string) (string, error) {
	messages := BuildMessages(svc.cfg.SystemPrompt, question, block)

	if timeout := svc.cfg.ChatTimeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	answer, err := svc.generator.Generate(ctx, messages, svc.cfg.Temperature)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUpstream, err.Error())
	}

	return answer, nil
}

// purgeStale deletes the chunks of a previous, longer version of the file.
// Chunk indices of a file are always contiguous from zero, so the stale ones
// are exactly those from the new chunk count up to the first missing index.
func (svc *service) purgeStale(ctx context.Context, collection vector.Collection, filename string, from int) (int, error) {
	var stale []string
	for i := from; ; i++ {
		id := ChunkID(filename, i)
		if _, err := collection.FindDocument(ctx, id); err != nil {
			break
		}

		stale = append(stale, id)
	}

	if err := collection.DeleteDocuments(ctx, stale...); err != nil {
		return 0, err
	}

	return len(stale), nil
}

// BuildMessages assembles the generation prompt for a question and its
// labeled context block.
func BuildMessages(systemPrompt string, question string, block string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: "Question: " + question + "\n\nContext:\n" + block},
	}
}

func decodeBase64(s string) ([]byte, error) {
	// line-wrapped payloads are common
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)

	return base64.StdEncoding.DecodeString(s)
}
