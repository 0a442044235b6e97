package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMServiceDisabledReturnsFallback(t *testing.T) {
	llm := NewLLMService("http://127.0.0.1:1", "", false, time.Second)

	text, err := llm.Generate(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, fallbackNoteMessage, text)
}

func TestLLMServiceGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "  the note \n", Done: true})
	}))
	defer server.Close()

	llm := NewLLMService(server.URL+"/", "", true, time.Second)
	text, err := llm.Generate(context.Background(), NotePrompt(Personas([]string{"The Skeptic"})[0], "content"))
	require.NoError(t, err)
	assert.Equal(t, "the note", text)
}

func TestLLMServiceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/pull" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	llm := NewLLMService(server.URL, "", true, time.Second)
	_, err := llm.Generate(context.Background(), "prompt")
	assert.True(t, errors.Is(err, ErrLLMUnavailable))

	server.Close()
	_, err = llm.Generate(context.Background(), "prompt")
	assert.True(t, errors.Is(err, ErrLLMUnavailable))
}

func TestPersonas(t *testing.T) {
	personas := Personas([]string{"The Skeptic", "The Contrarian"})
	require.Len(t, personas, 2)
	assert.True(t, strings.HasPrefix(personas[0].Description, "Highly critical"))
	assert.NotEmpty(t, personas[1].Description)

	prompt := ReviewPrompt(personas[0], "summary text")
	assert.Contains(t, prompt, "You are The Skeptic.")
	assert.Contains(t, prompt, "Note: summary text")
}
