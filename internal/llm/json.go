package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const jsonSystemPrompt = "You are a JSON generator. Respond with a single valid JSON object and nothing else. No prose, no markdown fences."

// GenerateJSON asks the model for a single JSON object and decodes it
// into out. Markdown code fences around the payload are tolerated, as
// is leading or trailing prose around the object.
func GenerateJSON(ctx context.Context, c Client, model, prompt string, out any) error {
	messages := []Message{
		{Role: "system", Content: jsonSystemPrompt},
		{Role: "user", Content: prompt},
	}

	resp, err := c.Chat(ctx, model, messages)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	payload := extractJSON(resp.Message.Content)
	if payload == "" {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("decode JSON response: %w", err)
	}
	return nil
}

// extractJSON pulls a JSON object or array out of model output. Strips
// markdown code fences if present, otherwise scans for the outermost
// brace pair. Returns "" if no candidate payload is found.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json\n")
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```\n")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
		return content
	}

	// Model wrapped the object in prose. Take the outermost braces.
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return ""
	}
	var end int
	if content[start] == '{' {
		end = strings.LastIndex(content, "}")
	} else {
		end = strings.LastIndex(content, "]")
	}
	if end <= start {
		return ""
	}
	return content[start : end+1]
}
