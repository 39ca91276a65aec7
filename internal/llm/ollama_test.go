package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// Representative Ollama /api/chat wire payload. This is the actual
// response shape the client must convert correctly.
const ollamaChatPayload = `{
	"model": "qwen3:4b",
	"created_at": "2026-02-11T15:00:00.123456789Z",
	"message": {
		"role": "assistant",
		"content": "Kathmandu apartment prices have risen steadily."
	},
	"done": true,
	"total_duration": 1234567890,
	"load_duration": 100000000,
	"prompt_eval_count": 42,
	"prompt_eval_duration": 500000000,
	"eval_count": 15,
	"eval_duration": 600000000
}`

func TestOllamaChat(t *testing.T) {
	var gotPath string
	var gotBody ollamaChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("request body not valid JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, ollamaChatPayload)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	resp, err := c.Chat(context.Background(), "qwen3:4b", []Message{
		{Role: "user", Content: "How is the Kathmandu market?"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotPath != "/api/chat" {
		t.Errorf("path = %q, want /api/chat", gotPath)
	}
	if gotBody.Stream {
		t.Error("request had stream=true, want false")
	}
	if gotBody.Model != "qwen3:4b" {
		t.Errorf("request model = %q", gotBody.Model)
	}

	if resp.Model != "qwen3:4b" {
		t.Errorf("Model = %q, want qwen3:4b", resp.Model)
	}
	if resp.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero, expected parsed time")
	}
	if resp.CreatedAt.Year() != 2026 || resp.CreatedAt.Month() != time.February {
		t.Errorf("CreatedAt = %v, expected 2026-02", resp.CreatedAt)
	}
	if resp.Message.Role != "assistant" {
		t.Errorf("Message.Role = %q, want assistant", resp.Message.Role)
	}
	if !resp.Done {
		t.Error("Done = false, want true")
	}
	if resp.InputTokens != 42 {
		t.Errorf("InputTokens = %d, want 42", resp.InputTokens)
	}
	if resp.OutputTokens != 15 {
		t.Errorf("OutputTokens = %d, want 15", resp.OutputTokens)
	}
	if resp.TotalDuration != 1234567890*time.Nanosecond {
		t.Errorf("TotalDuration = %v", resp.TotalDuration)
	}
}

func TestOllamaChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	_, err := c.Chat(context.Background(), "missing:model", []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("ping path = %q, want /api/tags", r.URL.Path)
		}
		io.WriteString(w, `{"models":[]}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOllamaPingDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestOllamaDefaultBaseURL(t *testing.T) {
	c := NewOllamaClient("", nil)
	if c.baseURL != "http://localhost:11434" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
}
