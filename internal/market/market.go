// Package market generates structured real-estate market reports via
// LLM JSON generation, optionally grounded in fetched page context.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/fetch"
	"github.com/gharkhoji/gharkhoji/internal/llm"
	"github.com/gharkhoji/gharkhoji/internal/prompts"
)

// Report is the fixed analysis schema the model is asked to fill.
type Report struct {
	Overview           string   `json:"overview"`
	Trends             []string `json:"trends"`
	InvestmentInsights []string `json:"investment_insights"`
	Risks              []string `json:"risks"`
	Opportunities      []string `json:"opportunities"`
	PriceProjections   string   `json:"price_projections"`
	Recommendations    []string `json:"recommendations"`
}

// fillDefaults replaces nil collections so the report always serializes
// with arrays, whichever generation path produced it.
func (r *Report) fillDefaults() {
	if r.Trends == nil {
		r.Trends = []string{}
	}
	if r.InvestmentInsights == nil {
		r.InvestmentInsights = []string{}
	}
	if r.Risks == nil {
		r.Risks = []string{}
	}
	if r.Opportunities == nil {
		r.Opportunities = []string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
}

// contextCharsPerPage caps how much of each fetched page is folded into
// the prompt.
const contextCharsPerPage = 2500

// fetchTimeout bounds each individual context page fetch.
const fetchTimeout = 10 * time.Second

// Analyst produces market reports for the MarketAnalysis tool.
type Analyst struct {
	client      llm.Client
	fetcher     *fetch.Fetcher
	model       string
	contextURLs []string
	logger      *slog.Logger
}

// NewAnalyst creates a market analyst. contextURLs are pages fetched
// before each analysis to ground the report; the list may be empty.
func NewAnalyst(client llm.Client, model string, contextURLs []string, logger *slog.Logger) *Analyst {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyst{
		client:      client,
		fetcher:     fetch.New(),
		model:       model,
		contextURLs: contextURLs,
		logger:      logger.With("component", "market"),
	}
}

// Analyze generates a structured market report for topic. When the
// model does not produce decodable JSON, the analysis degrades to
// free-text generation wrapped in a minimal report (text as overview,
// empty lists).
func (a *Analyst) Analyze(ctx context.Context, topic string) (*Report, error) {
	prompt := prompts.MarketAnalysis(topic, a.gatherContext(ctx))

	var r Report
	err := llm.GenerateJSON(ctx, a.client, a.model, prompt, &r)
	if err == nil {
		r.fillDefaults()
		return &r, nil
	}
	a.logger.Warn("structured market analysis failed, falling back to free text",
		"topic", topic, "error", err)

	resp, chatErr := a.client.Chat(ctx, a.model, []llm.Message{
		{Role: "user", Content: prompt},
	})
	if chatErr != nil {
		return nil, fmt.Errorf("market analysis: %w", chatErr)
	}

	r = Report{Overview: strings.TrimSpace(resp.Message.Content)}
	r.fillDefaults()
	return &r, nil
}

// gatherContext fetches the configured market pages and joins their
// readable text. A failed fetch skips that page; the analysis proceeds
// with whatever context survived, possibly none.
func (a *Analyst) gatherContext(ctx context.Context) string {
	var parts []string
	for _, u := range a.contextURLs {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		page, err := a.fetcher.Fetch(fetchCtx, u, contextCharsPerPage)
		cancel()
		if err != nil {
			a.logger.Warn("market context fetch failed", "url", u, "error", err)
			continue
		}
		if page.Text == "" {
			continue
		}
		if page.Title != "" {
			parts = append(parts, page.Title+"\n"+page.Text)
			continue
		}
		parts = append(parts, page.Text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
