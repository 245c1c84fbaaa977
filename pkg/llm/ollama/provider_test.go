package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"art-curator-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSendsPersonaAsSystemMessage(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{Message: llm.Message{Role: "assistant", Content: "[{}]"}, Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", time.Second)
	out, err := p.Generate(context.Background(), "list works", llm.WithPersona("art historian"))
	require.NoError(t, err)
	assert.Equal(t, "[{}]", out)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, llm.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "art historian", got.Messages[0].Content)
	assert.Equal(t, llm.RoleUser, got.Messages[1].Role)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
}

func TestChatReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing", time.Second)
	_, err := p.Chat(context.Background(), []llm.Message{{Role: "model", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
