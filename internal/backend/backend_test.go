package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnknownBackend(t *testing.T) {
	_, err := New("gemini", Options{})
	assert.EqualError(t, err, "unknown backend: gemini")
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	c, err := New(OpenAI, Options{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", c.Model())
	assert.Equal(t, "sk-test", c.apiKey)
	assert.Equal(t, "https://api.openai.com", c.baseURL)
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req OllamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3:latest", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, 0.7, req.Options.Temperature)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0]["role"])
		assert.Equal(t, "be contrary", req.Messages[0]["content"])
		assert.Equal(t, "cats", req.Messages[1]["content"])

		_, _ = w.Write([]byte(`{"model":"llama3:latest","message":{"role":"assistant","content":"cats are overrated"},"done":true}`))
	}))
	defer srv.Close()

	c, err := New(Ollama, Options{BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := c.Generate(context.Background(), Prompt{System: "be contrary", User: "cats", Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "cats are overrated", text)
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req AnthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "stay positive", req.System)
		assert.Equal(t, 1024, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"what a bright idea"}],"usage":{"input_tokens":12,"output_tokens":5}}`))
	}))
	defer srv.Close()

	c, err := New(Anthropic, Options{BaseURL: srv.URL, APIKey: "key-1"})
	require.NoError(t, err)

	text, err := c.Generate(context.Background(), Prompt{System: "stay positive", User: "cats"})
	require.NoError(t, err)
	assert.Equal(t, "what a bright idea", text)
}

func TestOpenAICompatibleGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer grok-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"hmm"}}]}`))
	}))
	defer srv.Close()

	c, err := New(Grok, Options{BaseURL: srv.URL + "/", APIKey: "grok-key"})
	require.NoError(t, err)

	text, err := c.Generate(context.Background(), Prompt{User: "cats"})
	require.NoError(t, err)
	assert.Equal(t, "hmm", text)
}

func TestGenerateErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		c, err := New(OpenAI, Options{})
		require.NoError(t, err)
		_, err = c.Generate(context.Background(), Prompt{User: "x"})
		assert.EqualError(t, err, "OPENAI_API_KEY not set")
	})

	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c, err := New(Ollama, Options{BaseURL: srv.URL})
		require.NoError(t, err)
		_, err = c.Generate(context.Background(), Prompt{User: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
		assert.Contains(t, err.Error(), "overloaded")
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		c, err := New(OpenAI, Options{BaseURL: srv.URL, APIKey: "k"})
		require.NoError(t, err)
		_, err = c.Generate(context.Background(), Prompt{User: "x"})
		assert.EqualError(t, err, "empty response from openai")
	})
}

func TestListOllamaModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","size":4661224676}]}`))
	}))
	defer srv.Close()

	c, err := New(Ollama, Options{BaseURL: srv.URL})
	require.NoError(t, err)

	models, err := c.ListOllamaModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llama3:latest", models[0].Name)

	other, err := New(OpenAI, Options{APIKey: "k"})
	require.NoError(t, err)
	_, err = other.ListOllamaModels(context.Background())
	assert.Error(t, err)
}

func TestTruncatedReplyIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"cut off mid"}],"stop_reason":"max_tokens"}`))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	c, err := New(Anthropic, Options{
		BaseURL: srv.URL,
		APIKey:  "key-1",
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)

	text, err := c.Generate(context.Background(), Prompt{User: "cats"})
	require.NoError(t, err)
	assert.Equal(t, "cut off mid", text)
	assert.Contains(t, logs.String(), "reply truncated at max tokens")
}
