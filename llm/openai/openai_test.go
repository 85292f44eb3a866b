package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	oai "github.com/sashabaranov/go-openai"

	"github.com/flarexio/ragdoc/llm"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(llm.Config{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
	})
	if err != nil {
		t.Fatal(err)
	}

	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(llm.Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestEmbedOrdersByIndex(t *testing.T) {
	assert := assert.New(t)

	var body map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
		  "object": "list",
		  "data": [
		    {"object": "embedding", "index": 1, "embedding": [0, 1]},
		    {"object": "embedding", "index": 0, "embedding": [1, 0]}
		  ],
		  "model": "text-embedding-3-small",
		  "usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`))
	})

	client := newTestClient(t, mux)

	vectors, err := client.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal([][]float32{{1, 0}, {0, 1}}, vectors)
	assert.Equal(llm.DefaultEmbedModel, body["model"])
	assert.Equal([]any{"first", "second"}, body["input"])
}

func TestEmbedCountMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object": "list", "data": [{"object": "embedding", "index": 0, "embedding": [1, 0]}]}`))
	})

	client := newTestClient(t, mux)

	_, err := client.Embed(context.Background(), []string{"first", "second"})
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestEmbedUpstreamError(t *testing.T) {
	assert := assert.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "model overloaded", "type": "server_error"}}`))
	})

	client := newTestClient(t, mux)

	_, err := client.Embed(context.Background(), []string{"first"})
	assert.Error(err)
	assert.Contains(err.Error(), "embed failed")
	assert.Contains(err.Error(), "model overloaded")
}

func TestEmbedNoTexts(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())

	vectors, err := client.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestGenerate(t *testing.T) {
	assert := assert.New(t)

	var body struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
		  "id": "chatcmpl-1",
		  "object": "chat.completion",
		  "model": "gpt-4o-mini",
		  "choices": [
		    {"index": 0, "message": {"role": "assistant", "content": "It ends the lease [1]."}, "finish_reason": "stop"}
		  ]
		}`))
	})

	client := newTestClient(t, mux)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "Answer from context."},
		{Role: llm.RoleUser, Content: "Question: termination?"},
	}

	answer, err := client.Generate(context.Background(), messages, 0.2)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("It ends the lease [1].", answer)
	assert.Equal(llm.DefaultChatModel, body.Model)
	assert.InDelta(0.2, body.Temperature, 1e-6)
	assert.Len(body.Messages, 2)
	assert.Equal("system", body.Messages[0].Role)
	assert.Equal("Question: termination?", body.Messages[1].Content)
}

func TestGenerateNoChoices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "chatcmpl-1", "object": "chat.completion", "choices": []}`))
	})

	client := newTestClient(t, mux)

	_, err := client.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, 0)
	assert.ErrorIs(t, err, ErrNoCompletionChoice)
}

func TestGenerateUpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited", "type": "requests"}}`))
	})

	client := newTestClient(t, mux)

	_, err := client.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, 0)

	var apiErr *oai.APIError
	if !errors.As(err, &apiErr) {
		assert.Fail(t, "unexpected error", err)
		return
	}

	assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatusCode)
	assert.Contains(t, err.Error(), "chat failed")
}
