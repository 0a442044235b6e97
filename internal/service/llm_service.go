package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const fallbackNoteMessage = "Automatic analysis unavailable."

// ErrLLMUnavailable is returned when the language model cannot produce text
var ErrLLMUnavailable = errors.New("language model unavailable")

// TextGenerator produces text for a prompt
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Persona is a point of view the language model writes notes and reviews from
type Persona struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

var knownPersonas = map[string]string{
	"The Skeptic":    "Highly critical and questions everything. Demands strong evidence and scrutinizes sources rigorously.",
	"The Scientist":  "Seeks empirical evidence and relies on scientific methods. Values objectivity and peer-reviewed research.",
	"The Historian":  "Examines events in context and considers historical patterns. Values primary sources and diverse perspectives.",
	"The Journalist": "Focuses on accuracy and objectivity. Verifies information through multiple sources and seeks out diverse perspectives.",
}

// Personas resolves persona names. Unknown names get a generic description.
func Personas(names []string) []Persona {
	personas := make([]Persona, 0, len(names))
	for _, name := range names {
		description, ok := knownPersonas[name]
		if !ok {
			description = "A careful reader checking the claims made in the post."
		}
		personas = append(personas, Persona{Name: name, Description: description})
	}
	return personas
}

// LLMService handles interaction with the Language Model
type LLMService struct {
	baseURL string
	model   string
	enabled bool
	client  *http.Client
}

// NewLLMService creates a new LLM service
func NewLLMService(baseURL, model string, enabled bool, timeout time.Duration) *LLMService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMService{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		enabled: enabled,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends a prompt to the model. When the service is disabled it
// returns a fixed fallback text; when the model cannot be reached or answers
// with an error it returns ErrLLMUnavailable.
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	if !s.enabled {
		return fallbackNoteMessage, nil
	}

	jsonData, err := json.Marshal(ollamaRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("LLM service unreachable", "error", err)
		return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		slog.Error("LLM service returned non-200 status", "status", resp.StatusCode, "body", string(bodyBytes))

		// If model not found, try to pull it
		if resp.StatusCode == http.StatusNotFound && strings.Contains(string(bodyBytes), "model") {
			go s.PullModel(context.WithoutCancel(ctx))
		}

		return "", fmt.Errorf("%w: status %d", ErrLLMUnavailable, resp.StatusCode)
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		slog.Error("Failed to decode LLM response", "error", err)
		return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	text := strings.TrimSpace(ollamaResp.Response)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrLLMUnavailable)
	}
	return text, nil
}

// NotePrompt asks a persona to analyse a post
func NotePrompt(persona Persona, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s. %s\n", persona.Name, persona.Description)
	sb.WriteString("Write a short community note that adds context to the following post. ")
	sb.WriteString("Point out claims that are misleading or lack evidence and say what a reader should check. ")
	sb.WriteString("Answer ONLY with the note text.\n\n")
	fmt.Fprintf(&sb, "Post: %s\n", content)
	return sb.String()
}

// ReviewPrompt asks a persona to review a note
func ReviewPrompt(persona Persona, summary string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s. %s\n", persona.Name, persona.Description)
	sb.WriteString("Review the following community note. ")
	sb.WriteString("Say whether it is correct, incorrect or somewhat correct and explain why in two sentences. ")
	sb.WriteString("Answer ONLY with the review text.\n\n")
	fmt.Fprintf(&sb, "Note: %s\n", summary)
	return sb.String()
}

// PullModel triggers a model pull
func (s *LLMService) PullModel(ctx context.Context) {
	slog.Info("Attempting to pull LLM model", "model", s.model)

	jsonData, _ := json.Marshal(map[string]string{"name": s.model})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/pull", bytes.NewBuffer(jsonData))
	if err != nil {
		slog.Error("Failed to build model pull request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("Failed to trigger model pull", "error", err)
		return
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		slog.Error("Failed to pull model", "status", resp.StatusCode, "body", string(bodyBytes))
		return
	}

	slog.Info("Model pull triggered successfully", "model", s.model)
}
