package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"interview-copilot-service/src/config"
	"interview-copilot-service/src/models"
)

type staticSettings struct {
	settings models.AdminSettings
}

func (s *staticSettings) Settings(ctx context.Context) (*models.AdminSettings, error) {
	copied := s.settings
	return &copied, nil
}

func newTestClient(settings models.AdminSettings) *Client {
	return NewClient(&staticSettings{settings: settings}, &config.GlobalConfig{})
}

func sseFrames(frames ...string) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString("data: " + f + "\n\n")
	}
	return b.String()
}

func TestStreamCompletionRelaysTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseFrames(
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{not json`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			"[DONE]",
			`{"choices":[{"delta":{"content":"ignored"}}]}`,
		))
	}))
	defer server.Close()

	original := openAIEndpoint
	openAIEndpoint = server.URL
	defer func() { openAIEndpoint = original }()

	client := newTestClient(models.AdminSettings{OpenAIAPIKey: "sk-test"})

	var tokens []string
	answer, err := client.StreamCompletion(context.Background(), "openai", []Message{{Role: "user", Content: "hi"}}, func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	if answer != "Hello" {
		t.Errorf("answer = %q, want %q", answer, "Hello")
	}
	if len(tokens) != 2 || tokens[0] != "Hel" || tokens[1] != "lo" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestStreamCompletionProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	original := openAIEndpoint
	openAIEndpoint = server.URL
	defer func() { openAIEndpoint = original }()

	client := newTestClient(models.AdminSettings{OpenAIAPIKey: "sk-test"})

	_, err := client.StreamCompletion(context.Background(), "gpt", []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry status code, got %v", err)
	}
}

func TestStreamCompletionMissingKey(t *testing.T) {
	client := newTestClient(models.AdminSettings{})

	_, err := client.StreamCompletion(context.Background(), "deepseek", []Message{{Role: "user", Content: "hi"}}, nil)
	if !errors.Is(err, models.ErrProviderNotConfigured) {
		t.Errorf("expected ErrProviderNotConfigured, got %v", err)
	}
}

func TestStreamCompletionEmptyMessages(t *testing.T) {
	client := newTestClient(models.AdminSettings{OpenAIAPIKey: "sk-test"})
	if _, err := client.StreamCompletion(context.Background(), "openai", nil, nil); err == nil {
		t.Fatal("expected error for empty messages")
	}
}

func TestStreamGeminiRoleMapping(t *testing.T) {
	contents := geminiContents([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	})
	if contents[0].Role != "user" {
		t.Errorf("user role = %q", contents[0].Role)
	}
	if contents[1].Role != "model" {
		t.Errorf("assistant role = %q, want model", contents[1].Role)
	}
}

func TestCallNonStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"full answer"}}]}`)
	}))
	defer server.Close()

	original := deepSeekEndpoint
	deepSeekEndpoint = server.URL
	defer func() { deepSeekEndpoint = original }()

	client := newTestClient(models.AdminSettings{DeepSeekAPIKey: "sk-ds"})

	answer, err := client.Call(context.Background(), "deepseek", []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if answer != "full answer" {
		t.Errorf("answer = %q", answer)
	}
}
