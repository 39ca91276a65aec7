// Package memory owns conversation session and user preference
// lifecycle: resume-or-create decisions, message persistence with a
// size cap, token-budgeted context assembly, and incremental preference
// extraction from user messages.
package memory

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ToolCall records one tool invocation made while producing an answer.
type ToolCall struct {
	Name   string          `json:"name"`
	Input  string          `json:"input"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Metadata is optional structured context attached to a message. For
// assistant messages it captures the tool calls and the serialized
// reasoning trace so a UI can replay the answer without re-deriving it.
type Metadata struct {
	ToolCalls      []ToolCall      `json:"tool_calls,omitempty"`
	ReasoningSteps json.RawMessage `json:"reasoning_steps,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	CreatedAtMs int64     `json:"created_at_ms"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// Session is one user's conversation. Messages are append-ordered;
// insertion order is causal order.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title,omitempty"`
	Messages       []Message `json:"messages"`
	LastActivityMs int64     `json:"last_activity_ms"`
	CreatedAtMs    int64     `json:"created_at_ms"`
	UpdatedAtMs    int64     `json:"updated_at_ms"`
}

// PriceRange is a budget window in NPR. Zero bounds are unset.
type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// UserPreferences is the accumulated profile for one user. Collections
// grow by set union and scalars by overwrite; extraction never removes
// previously known values.
type UserPreferences struct {
	ID                 string      `json:"id"`
	UserID             string      `json:"user_id"`
	PropertyTypes      []string    `json:"property_types"`
	PriceRange         *PriceRange `json:"price_range,omitempty"`
	Locations          []string    `json:"locations"`
	Bedrooms           int         `json:"bedrooms,omitempty"`
	Amenities          []string    `json:"amenities"`
	SearchHistory      []string    `json:"search_history"`
	ViewedProperties   []string    `json:"viewed_properties"`
	FavoriteProperties []string    `json:"favorite_properties"`
	CommunicationStyle string      `json:"communication_style,omitempty"`
	Language           string      `json:"language,omitempty"`
	UpdatedAtMs        int64       `json:"updated_at_ms"`
}

func defaultPreferences(userID string) *UserPreferences {
	return &UserPreferences{
		UserID:             userID,
		PropertyTypes:      []string{},
		Locations:          []string{},
		Amenities:          []string{},
		SearchHistory:      []string{},
		ViewedProperties:   []string{},
		FavoriteProperties: []string{},
		CommunicationStyle: "friendly",
		Language:           "en",
	}
}

// Summary renders what is known about the user as short prompt lines.
// Returns "" when nothing useful is known yet.
func (p *UserPreferences) Summary() string {
	if p == nil {
		return ""
	}
	var lines []string
	if len(p.PropertyTypes) > 0 {
		lines = append(lines, "- Interested in: "+strings.Join(p.PropertyTypes, ", "))
	}
	if pr := p.PriceRange; pr != nil && (pr.Min > 0 || pr.Max > 0) {
		switch {
		case pr.Min > 0 && pr.Max > 0:
			lines = append(lines, fmt.Sprintf("- Budget: NPR %d to %d", pr.Min, pr.Max))
		case pr.Max > 0:
			lines = append(lines, fmt.Sprintf("- Budget: up to NPR %d", pr.Max))
		default:
			lines = append(lines, fmt.Sprintf("- Budget: from NPR %d", pr.Min))
		}
	}
	if len(p.Locations) > 0 {
		lines = append(lines, "- Preferred areas: "+strings.Join(p.Locations, ", "))
	}
	if p.Bedrooms > 0 {
		lines = append(lines, fmt.Sprintf("- Bedrooms: %d", p.Bedrooms))
	}
	if len(p.Amenities) > 0 {
		lines = append(lines, "- Wants: "+strings.Join(p.Amenities, ", "))
	}
	if len(p.SearchHistory) > 0 {
		recent := p.SearchHistory
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		lines = append(lines, "- Recent searches: "+strings.Join(recent, "; "))
	}
	return strings.Join(lines, "\n")
}

// estimateTokens is the budgeting heuristic: four characters per token.
func estimateTokens(s string) int {
	return len(s) / 4
}
