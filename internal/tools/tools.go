// Package tools defines the fixed tool catalog the agent dispatches to:
// Search, Maps, Calculator, MarketAnalysis, PropertyDatabase, Clarify.
// Every execution is normalized into a Result envelope; dispatch never
// propagates errors outward.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/listings"
	"github.com/gharkhoji/gharkhoji/internal/market"
	"github.com/gharkhoji/gharkhoji/internal/places"
	"github.com/gharkhoji/gharkhoji/internal/search"
)

// Tool names as they appear in Action: lines.
const (
	NameSearch           = "Search"
	NameMaps             = "Maps"
	NameCalculator       = "Calculator"
	NameMarketAnalysis   = "MarketAnalysis"
	NamePropertyDatabase = "PropertyDatabase"
	NameClarify          = "Clarify"
)

// Result is the uniform tool execution envelope. Success=false implies
// Data is nil and Error is non-empty; the inverse is not required.
type Result struct {
	Success         bool            `json:"success"`
	Data            json.RawMessage `json:"data,omitempty"`
	Error           string          `json:"error,omitempty"`
	ExecutionTimeMs int64           `json:"execution_time_ms"`
}

func failed(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Tool is one callable catalog entry. Handlers take the raw Action
// Input text and return a JSON-marshalable payload.
type Tool struct {
	Name        string
	Description string
	Handler     func(ctx context.Context, input string) (any, error)
}

// Deps are the collaborators behind the tool catalog. Nil fields
// degrade at call time: the affected tool returns a failed result (or,
// for Maps, the synthesized fallback) rather than vanishing from the
// catalog.
type Deps struct {
	Search         *search.Manager
	SearchLocation string // locale hint, e.g. "Kathmandu, Nepal"
	Places         places.Provider
	Analyst        *market.Analyst
	Listings       *listings.Store
	Logger         *slog.Logger
}

// Registry holds the tool catalog.
type Registry struct {
	tools map[string]*Tool
	order []string

	search         *search.Manager
	searchLocation string
	places         places.Provider
	analyst        *market.Analyst
	listings       *listings.Store
	logger         *slog.Logger
}

// NewRegistry creates the registry with the full fixed catalog.
func NewRegistry(deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:          make(map[string]*Tool),
		search:         deps.Search,
		searchLocation: deps.SearchLocation,
		places:         deps.Places,
		analyst:        deps.Analyst,
		listings:       deps.Listings,
		logger:         logger.With("component", "tools"),
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.Register(&Tool{
		Name:        NameSearch,
		Description: "Search the web for current information: market news, area guides, price references. Input: a plain search query.",
		Handler:     r.handleSearch,
	})
	r.Register(&Tool{
		Name:        NameMaps,
		Description: "Look up an area: nearby schools, hospitals, markets, and transport. Input: a place or neighborhood, e.g. \"schools near Baneshwor\".",
		Handler:     r.handleMaps,
	})
	r.Register(&Tool{
		Name:        NameCalculator,
		Description: "Calculate. Plain arithmetic, or ROI (mention \"roi\" with sale value and purchase cost), or rental yield (mention \"yield\" with annual rent and property value).",
		Handler:     r.handleCalculator,
	})
	r.Register(&Tool{
		Name:        NameMarketAnalysis,
		Description: "Generate a market analysis report for a market segment or area, e.g. \"Kathmandu apartment rental market\".",
		Handler:     r.handleMarketAnalysis,
	})
	r.Register(&Tool{
		Name:        NamePropertyDatabase,
		Description: "Search property listings. Input: a plain description of what the user wants, including area, budget, rooms, and rent or sale.",
		Handler:     r.handlePropertyDatabase,
	})
	r.Register(&Tool{
		Name:        NameClarify,
		Description: "Ask the user for missing details. Input: the question to ask.",
		Handler:     r.handleClarify,
	})
}

// Register adds a tool, keeping first-registration order for the
// catalog rendering.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the tool names in catalog order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Catalog renders the tool list for the system prompt.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for _, name := range r.order {
		t := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Execute runs a tool by name against a free-text input and returns the
// result envelope. Handler errors, panics, and unknown names all come
// back as failed results with wall-clock timing; Execute never returns
// an error.
func (r *Registry) Execute(ctx context.Context, name, input string) Result {
	start := time.Now()
	res := r.execute(ctx, name, input)
	res.ExecutionTimeMs = time.Since(start).Milliseconds()
	return res
}

func (r *Registry) execute(ctx context.Context, name, input string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			res = failed(fmt.Sprintf("tool %s panicked: %v", name, p))
		}
	}()

	tool := r.tools[name]
	if tool == nil {
		return failed(fmt.Sprintf("unknown tool: %s", name))
	}

	payload, err := tool.Handler(ctx, input)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return failed(err.Error())
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return failed(fmt.Sprintf("encode %s payload: %v", name, err))
	}
	return Result{Success: true, Data: data}
}
