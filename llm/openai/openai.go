package openai

import (
	"context"
	"errors"
	"fmt"

	oai "github.com/sashabaranov/go-openai"

	"github.com/flarexio/ragdoc/llm"
)

var (
	ErrMissingAPIKey      = errors.New("openai api key is required")
	ErrEmbeddingMismatch  = errors.New("embedding count mismatch")
	ErrNoCompletionChoice = errors.New("no completion choice returned")
)

// Client talks to an OpenAI-compatible API. It implements both
// llm.Embedder and llm.Generator.
type Client struct {
	client     *oai.Client
	embedModel string
	chatModel  string
}

func NewClient(cfg llm.Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	config := oai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = llm.DefaultEmbedModel
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = llm.DefaultChatModel
	}

	return &Client{
		client:     oai.NewClientWithConfig(config),
		embedModel: embedModel,
		chatModel:  chatModel,
	}, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := oai.EmbeddingRequest{
		Input: texts,
		Model: oai.EmbeddingModel(c.embedModel),
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrEmbeddingMismatch, len(texts), len(resp.Data))
	}

	// The API reports each vector's input position; do not rely on array order.
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || embeddings[d.Index] != nil {
			return nil, fmt.Errorf("%w: invalid index %d", ErrEmbeddingMismatch, d.Index)
		}

		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}

func (c *Client) Generate(ctx context.Context, messages []llm.Message, temperature float32) (string, error) {
	msgs := make([]oai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = oai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	req := oai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    msgs,
		Temperature: temperature,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoCompletionChoice
	}

	return resp.Choices[0].Message.Content, nil
}
