// Package llm describes the remote capabilities the service depends on:
// text embedding and chat generation.
package llm

import "context"

type Config struct {
	APIKey     string `yaml:"apiKey"`
	BaseURL    string `yaml:"baseURL"`
	EmbedModel string `yaml:"embedModel"`
	ChatModel  string `yaml:"chatModel"`
}

const (
	DefaultEmbedModel = "text-embedding-3-small"
	DefaultChatModel  = "gpt-4o-mini"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Embedder converts texts into vectors, one per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for the given conversation.
type Generator interface {
	Generate(ctx context.Context, messages []Message, temperature float32) (string, error)
}
