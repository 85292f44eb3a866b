package ragdoc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarexio/ragdoc/llm"
	"github.com/flarexio/ragdoc/vector"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrInvalidClient     = errors.New("client is required")
	ErrInvalidFilename   = errors.New("filename is required")
	ErrInvalidQuery      = errors.New("query is required")
	ErrInvalidEncoding   = errors.New("invalid encoding")
	ErrNoContent         = errors.New("no content to index")
	ErrUnauthorized      = errors.New("invalid action key")
	ErrUpstream          = errors.New("upstream unavailable")
	ErrMissingCredential = errors.New("provider credential is required")
	ErrVectorDBNotSet    = errors.New("vector database not set")
)

// IsClientError reports whether err was caused by malformed input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrInvalidClient) ||
		errors.Is(err, ErrInvalidFilename) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrInvalidEncoding) ||
		errors.Is(err, ErrNoContent)
}

type ContextKey string

// ActionKey carries the caller's shared secret through a context, for
// transports that forward it to a remote service.
const ActionKey ContextKey = "action_key"

const (
	DefaultCollectionPrefix = "docs_"
	DefaultTopK             = 6
	DefaultMaxTopK          = 50
	DefaultSnippetLength    = 240
	DefaultTemperature      = 0.2
	DefaultSystemPrompt     = "You are a document assistant. Answer from the provided context and cite sources by their [n] label when possible."

	NotFoundAnswer = "Not found in the provided documents."
	UnknownFile    = "unknown"
	FilenameKey    = "filename"
)

type Config struct {
	CollectionPrefix string        `yaml:"collectionPrefix"`
	DefaultTopK      int           `yaml:"defaultTopK"`
	MaxTopK          int           `yaml:"maxTopK"`
	SnippetLength    int           `yaml:"snippetLength"`
	PurgeStale       bool          `yaml:"purgeStale"`
	SystemPrompt     string        `yaml:"systemPrompt"`
	Temperature      float32       `yaml:"temperature"`
	EmbedTimeout     Duration      `yaml:"embedTimeout"`
	ChatTimeout      Duration      `yaml:"chatTimeout"`
	ActionKey        string        `yaml:"actionKey"`
	Provider         llm.Config    `yaml:"provider"`
	Vector           vector.Config `yaml:"vector"`
}

func DefaultConfig() Config {
	return Config{
		CollectionPrefix: DefaultCollectionPrefix,
		DefaultTopK:      DefaultTopK,
		MaxTopK:          DefaultMaxTopK,
		SnippetLength:    DefaultSnippetLength,
		PurgeStale:       true,
		SystemPrompt:     DefaultSystemPrompt,
		Temperature:      DefaultTemperature,
		EmbedTimeout:     Duration(60 * time.Second),
		ChatTimeout:      Duration(120 * time.Second),
		Provider: llm.Config{
			EmbedModel: llm.DefaultEmbedModel,
			ChatModel:  llm.DefaultChatModel,
		},
		Vector: vector.Config{
			Persistent: true,
		},
	}
}

// Validate fails when the service cannot start with this configuration.
func (cfg Config) Validate() error {
	if cfg.Provider.APIKey == "" {
		return ErrMissingCredential
	}

	if cfg.Vector.Persistent && cfg.Vector.Path == "" {
		return errors.New("vector path is required for persistent storage")
	}

	return nil
}

// PartitionName derives the collection name that isolates a tenant's chunks.
func PartitionName(prefix string, client string) string {
	return strings.ToLower(prefix + client)
}

// CheckActionKey compares the presented key with the configured shared
// secret. An empty expected key disables the check.
func CheckActionKey(expected string, presented string) error {
	if expected == "" {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
		return ErrUnauthorized
	}

	return nil
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

// Chunk is one paragraph of an ingested file.
type Chunk struct {
	Filename string
	Index    int
	Text     string
}

func ChunkID(filename string, index int) string {
	return fmt.Sprintf("%s:%d", filename, index)
}

func (c Chunk) ID() string {
	return ChunkID(c.Filename, c.Index)
}

func (c Chunk) ToDocument(embedding []float32) vector.Document {
	return vector.Document{
		ID:        c.ID(),
		Content:   c.Text,
		Metadata:  map[string]string{FilenameKey: c.Filename},
		Embedding: embedding,
	}
}

type Source struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Snippet  string `json:"snippet"`
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type Hit struct {
	Filename string `json:"filename"`
	Preview  string `json:"preview"`
}

func filenameOf(doc vector.Document) string {
	if name, ok := doc.Metadata[FilenameKey]; ok {
		return name
	}

	return UnknownFile
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}

	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}

	return s
}
