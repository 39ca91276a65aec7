// Package search provides a pluggable web search interface for the agent.
//
// Each search provider implements the [Provider] interface and is
// registered by name. The [Manager] selects a provider based on
// configuration and exposes a single [Manager.Search] method that
// the tool layer calls.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Result is a single organic search result.
type Result struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet,omitempty"`
	Position int    `json:"position,omitempty"`
}

// NewsResult is a single news search result.
type NewsResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"source,omitempty"`
	Date    string `json:"date,omitempty"`
}

// AnswerBox is a direct answer extracted by the search engine.
type AnswerBox struct {
	Answer string `json:"answer,omitempty"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Response is the full result set for one query.
type Response struct {
	Query     string       `json:"query"`
	Organic   []Result     `json:"organic"`
	News      []NewsResult `json:"news,omitempty"`
	Related   []string     `json:"related,omitempty"`
	AnswerBox *AnswerBox   `json:"answer_box,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	// Count is the maximum number of organic results to return.
	// Providers may return fewer. Zero means provider default.
	Count int `json:"count,omitempty"`

	// Location biases results toward a locale (e.g., "Kathmandu, Nepal").
	// Not all providers support it.
	Location string `json:"location,omitempty"`

	// IncludeNews asks the provider for news results alongside organic.
	IncludeNews bool `json:"include_news,omitempty"`
}

// Provider is the interface that search backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "serper", "searxng").
	Name() string

	// Search executes a query and returns results.
	Search(ctx context.Context, query string, opts Options) (*Response, error)
}

// Manager holds configured providers and routes searches.
type Manager struct {
	providers map[string]Provider
	primary   string
}

// NewManager creates a search manager. The primary provider name
// determines which backend is used by default.
func NewManager(primary string) *Manager {
	return &Manager{
		providers: make(map[string]Provider),
		primary:   primary,
	}
}

// Register adds a provider to the manager.
func (m *Manager) Register(p Provider) {
	m.providers[p.Name()] = p
}

// Search runs a query against the primary provider.
func (m *Manager) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	p, ok := m.providers[m.primary]
	if !ok {
		return nil, fmt.Errorf("search provider %q not configured", m.primary)
	}
	return p.Search(ctx, query, opts)
}

// SearchWith runs a query against a specific named provider.
func (m *Manager) SearchWith(ctx context.Context, provider, query string, opts Options) (*Response, error) {
	p, ok := m.providers[provider]
	if !ok {
		return nil, fmt.Errorf("search provider %q not configured", provider)
	}
	return p.Search(ctx, query, opts)
}

// Providers returns the names of all registered providers.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names
}

// Configured reports whether at least one provider is registered.
func (m *Manager) Configured() bool {
	return len(m.providers) > 0
}

// FormatResponse builds a human-readable result string suitable for
// feeding back to the model as an observation.
func FormatResponse(resp *Response) string {
	if resp == nil || (len(resp.Organic) == 0 && resp.AnswerBox == nil && len(resp.News) == 0) {
		return "No results found."
	}

	var b strings.Builder

	if resp.AnswerBox != nil && resp.AnswerBox.Answer != "" {
		b.WriteString("Answer: ")
		b.WriteString(resp.AnswerBox.Answer)
		b.WriteString("\n\n")
	}

	for i, r := range resp.Organic {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(r.Title)
		b.WriteString("\n   ")
		b.WriteString(r.URL)
		if r.Snippet != "" {
			b.WriteString("\n   ")
			b.WriteString(r.Snippet)
		}
	}

	if len(resp.News) > 0 {
		b.WriteString("\n\nNews:")
		for _, n := range resp.News {
			b.WriteString("\n- ")
			b.WriteString(n.Title)
			if n.Source != "" {
				b.WriteString(" (")
				b.WriteString(n.Source)
				b.WriteString(")")
			}
		}
	}

	if len(resp.Related) > 0 {
		b.WriteString("\n\nRelated: ")
		b.WriteString(strings.Join(resp.Related, "; "))
	}

	return b.String()
}
