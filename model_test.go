package ragdoc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestConfigYAMLUnmarshal(t *testing.T) {
	assert := assert.New(t)

	input := `collectionPrefix: tenant_
maxTopK: 20
purgeStale: false
embedTimeout: 30s
chatTimeout: 2m
provider:
  embedModel: text-embedding-3-large
vector:
  persistent: true
  path: /var/data/chroma`

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(input), &cfg); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("tenant_", cfg.CollectionPrefix)
	assert.Equal(20, cfg.MaxTopK)
	assert.Equal(DefaultTopK, cfg.DefaultTopK, "unset fields keep their defaults")
	assert.False(cfg.PurgeStale)
	assert.Equal(30*time.Second, cfg.EmbedTimeout.Duration())
	assert.Equal(2*time.Minute, cfg.ChatTimeout.Duration())
	assert.Equal("text-embedding-3-large", cfg.Provider.EmbedModel)
	assert.Equal("gpt-4o-mini", cfg.Provider.ChatModel)
	assert.Equal("/var/data/chroma", cfg.Vector.Path)
}

func TestDurationJSON(t *testing.T) {
	assert := assert.New(t)

	var d Duration
	if err := json.Unmarshal([]byte(`"1m30s"`), &d); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(90*time.Second, d.Duration())

	bs, err := json.Marshal(d)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(`"1m30s"`, string(bs))
	assert.Error(json.Unmarshal([]byte(`"soon"`), &d))
}

func TestConfigValidate(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	cfg.Vector.Path = "/tmp/chroma"
	assert.ErrorIs(cfg.Validate(), ErrMissingCredential)

	cfg.Provider.APIKey = "sk-test"
	assert.NoError(cfg.Validate())

	cfg.Vector.Path = ""
	assert.Error(cfg.Validate())

	cfg.Vector.Persistent = false
	assert.NoError(cfg.Validate())
}

func TestPartitionName(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("docs_acme", PartitionName(DefaultCollectionPrefix, "ACME"))
	assert.Equal(PartitionName("docs_", "Acme"), PartitionName("docs_", "acme"))
	assert.NotEqual(PartitionName("docs_", "acme"), PartitionName("docs_", "globex"))
}

func TestCheckActionKey(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(CheckActionKey("", ""))
	assert.NoError(CheckActionKey("", "anything"))
	assert.NoError(CheckActionKey("secret", "secret"))
	assert.ErrorIs(CheckActionKey("secret", ""), ErrUnauthorized)
	assert.ErrorIs(CheckActionKey("secret", "Secret"), ErrUnauthorized)
}

func TestChunkDocument(t *testing.T) {
	assert := assert.New(t)

	chunk := Chunk{Filename: "lease.txt", Index: 3, Text: "A termination clause."}
	doc := chunk.ToDocument([]float32{1, 0})

	assert.Equal("lease.txt:3", doc.ID)
	assert.Equal("A termination clause.", doc.Content)
	assert.Equal("lease.txt", doc.Metadata[FilenameKey])
	assert.Equal([]float32{1, 0}, doc.Embedding)
}

func TestTruncate(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("abc", truncate("abc", 240))
	assert.Equal("ab", truncate("abc", 2))
	assert.Equal("日本", truncate("日本語", 2), "counts characters, not bytes")
	assert.Equal("", truncate("", 5))
}

func TestIsClientError(t *testing.T) {
	assert := assert.New(t)

	assert.True(IsClientError(ErrNoContent))
	assert.True(IsClientError(ErrInvalidEncoding))
	assert.False(IsClientError(ErrUpstream))
	assert.False(IsClientError(ErrUnauthorized))
	assert.False(IsClientError(nil))
}
