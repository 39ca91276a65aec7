package llm

import (
	"context"
	"fmt"
	"testing"
)

// cannedClient returns a fixed response for any Chat call.
type cannedClient struct {
	content string
	err     error
}

func (c *cannedClient) Chat(ctx context.Context, model string, messages []Message) (*ChatResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &ChatResponse{
		Model:   model,
		Message: Message{Role: "assistant", Content: c.content},
		Done:    true,
	}, nil
}

func (c *cannedClient) Ping(ctx context.Context) error { return nil }

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bare object",
			content: `{"title": "Flat hunt"}`,
			want:    `{"title": "Flat hunt"}`,
		},
		{
			name:    "fenced with language",
			content: "```json\n{\"title\": \"Flat hunt\"}\n```",
			want:    `{"title": "Flat hunt"}`,
		},
		{
			name:    "fenced without language",
			content: "```\n{\"title\": \"Flat hunt\"}\n```",
			want:    `{"title": "Flat hunt"}`,
		},
		{
			name:    "prose around object",
			content: `Here is the data you asked for: {"title": "Flat hunt"} Hope that helps!`,
			want:    `{"title": "Flat hunt"}`,
		},
		{
			name:    "array payload",
			content: `[{"a": 1}, {"a": 2}]`,
			want:    `[{"a": 1}, {"a": 2}]`,
		},
		{
			name:    "no JSON at all",
			content: "I could not produce that.",
			want:    "",
		},
		{
			name:    "empty",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractJSON(tt.content)
			if got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestGenerateJSON(t *testing.T) {
	c := &cannedClient{content: "```json\n{\"overview\": \"Prices rising\", \"trends\": [\"more condos\"]}\n```"}

	var out struct {
		Overview string   `json:"overview"`
		Trends   []string `json:"trends"`
	}
	if err := GenerateJSON(context.Background(), c, "qwen3:4b", "analyze", &out); err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}

	if out.Overview != "Prices rising" {
		t.Errorf("overview = %q", out.Overview)
	}
	if len(out.Trends) != 1 || out.Trends[0] != "more condos" {
		t.Errorf("trends = %v", out.Trends)
	}
}

func TestGenerateJSONNoPayload(t *testing.T) {
	c := &cannedClient{content: "Sorry, I cannot answer that."}

	var out map[string]any
	if err := GenerateJSON(context.Background(), c, "qwen3:4b", "analyze", &out); err == nil {
		t.Error("expected error when response has no JSON")
	}
}

func TestGenerateJSONChatError(t *testing.T) {
	c := &cannedClient{err: fmt.Errorf("connection refused")}

	var out map[string]any
	if err := GenerateJSON(context.Background(), c, "qwen3:4b", "analyze", &out); err == nil {
		t.Error("expected chat error to propagate")
	}
}
