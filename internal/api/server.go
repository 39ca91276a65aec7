// Package api implements the HTTP surface: the query endpoint, session
// and preference accessors for UI display, listing lookups with QR
// sharing, the WebSocket event stream, and runtime stats.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/gharkhoji/gharkhoji/internal/agent"
	"github.com/gharkhoji/gharkhoji/internal/buildinfo"
	"github.com/gharkhoji/gharkhoji/internal/connwatch"
	"github.com/gharkhoji/gharkhoji/internal/events"
	"github.com/gharkhoji/gharkhoji/internal/listings"
	"github.com/gharkhoji/gharkhoji/internal/memory"
	"github.com/gharkhoji/gharkhoji/internal/usage"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// QueryStats tracks served queries for /v1/stats and telemetry.
type QueryStats struct {
	mu           sync.Mutex
	queries      int64
	totalLatency time.Duration
	lastQuery    time.Time
}

// Record counts one served query.
func (s *QueryStats) Record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	s.totalLatency += d
	s.lastQuery = time.Now()
}

// QueryStatsSnapshot is a copy-safe view of the counters.
type QueryStatsSnapshot struct {
	Queries      int64  `json:"queries_served"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
	LastQueryAt  string `json:"last_query_at,omitempty"`
}

// Snapshot returns the current counters.
func (s *QueryStats) Snapshot() QueryStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := QueryStatsSnapshot{Queries: s.queries}
	if s.queries > 0 {
		snap.AvgLatencyMs = (s.totalLatency / time.Duration(s.queries)).Milliseconds()
	}
	if !s.lastQuery.IsZero() {
		snap.LastQueryAt = s.lastQuery.UTC().Format(time.RFC3339)
	}
	return snap
}

// Queries returns the served-query count.
func (s *QueryStats) Queries() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// LastQuery returns when the most recent query completed, or the zero
// time before the first one.
func (s *QueryStats) LastQuery() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// Deps are the server collaborators. Loop is required; the rest degrade
// to 503s (stores), missing sections (stats sources), or a disabled
// endpoint (events without a bus).
type Deps struct {
	Loop          *agent.Loop
	Memory        *memory.Manager
	MemoryStore   *memory.Store
	Listings      *listings.Store
	Bus           *events.Bus
	Stats         *QueryStats
	Usage         *usage.Store
	Conns         *connwatch.Manager
	PublicBaseURL string
	Logger        *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	address       string
	port          int
	loop          *agent.Loop
	memory        *memory.Manager
	memoryStore   *memory.Store
	listings      *listings.Store
	bus           *events.Bus
	stats         *QueryStats
	usage         *usage.Store
	conns         *connwatch.Manager
	publicBaseURL string
	logger        *slog.Logger
	server        *http.Server
}

// NewServer creates the API server.
func NewServer(address string, port int, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stats := deps.Stats
	if stats == nil {
		stats = &QueryStats{}
	}
	return &Server{
		address:       address,
		port:          port,
		loop:          deps.Loop,
		memory:        deps.Memory,
		memoryStore:   deps.MemoryStore,
		listings:      deps.Listings,
		bus:           deps.Bus,
		stats:         stats,
		usage:         deps.Usage,
		conns:         deps.Conns,
		publicBaseURL: strings.TrimRight(deps.PublicBaseURL, "/"),
		logger:        logger.With("component", "api"),
	}
}

// Handler returns the routed handler with logging middleware. Split
// from Start so tests can drive the mux without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/query", s.handleQuery)

	mux.HandleFunc("GET /v1/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("GET /v1/users/{userID}/sessions", s.handleUserSessions)
	mux.HandleFunc("GET /v1/users/{userID}/preferences", s.handleUserPreferences)

	mux.HandleFunc("GET /v1/listings/{id}", s.handleListingGet)
	mux.HandleFunc("GET /v1/listings/{id}/qr", s.handleListingQR)

	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stats", s.handleStats)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests and blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.errorResponse(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Gharkhoji",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

// handleHealth reports liveness plus the state of watched external
// dependencies. The status code stays 200 even when degraded: a down
// broker or mailbox should not get the whole instance restarted.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "healthy",
		"version": buildinfo.Version,
	}

	if s.conns != nil {
		services := s.conns.Status()
		if len(services) > 0 {
			resp["services"] = services
			for _, svc := range services {
				if !svc.Ready {
					resp["status"] = "degraded"
					break
				}
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// queryRequest is the /v1/query body.
type queryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.errorResponse(w, http.StatusBadRequest, "query is required")
		return
	}

	start := time.Now()
	resp := s.loop.ProcessQuery(r.Context(), req.Query, req.UserID)
	s.stats.Record(time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	if s.memoryStore == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "memory store not configured")
		return
	}

	sess, err := s.memoryStore.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("session lookup failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, sess, s.logger)
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	if s.memoryStore == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "memory store not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := s.memoryStore.UserSessions(r.Context(), r.PathValue("userID"), limit)
	if err != nil {
		s.logger.Error("session list failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "session list failed")
		return
	}

	// Summaries only; /v1/sessions/{id} carries the messages.
	type sessionSummary struct {
		ID             string `json:"id"`
		Title          string `json:"title,omitempty"`
		LastActivityMs int64  `json:"last_activity_ms"`
		CreatedAtMs    int64  `json:"created_at_ms"`
	}
	summaries := make([]sessionSummary, len(sessions))
	for i, c := range sessions {
		summaries[i] = sessionSummary{
			ID:             c.ID,
			Title:          c.Title,
			LastActivityMs: c.LastActivityMs,
			CreatedAtMs:    c.CreatedAtMs,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, summaries, s.logger)
}

func (s *Server) handleUserPreferences(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	// Prefer the manager's live view; fall back to the stored record
	// for users without an active session.
	if s.memory != nil {
		if prefs := s.memory.Preferences(userID); prefs != nil {
			w.Header().Set("Content-Type", "application/json")
			writeJSON(w, prefs, s.logger)
			return
		}
	}
	if s.memoryStore == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "memory store not configured")
		return
	}

	prefs, err := s.memoryStore.Preferences(r.Context(), userID)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "no preferences for user")
			return
		}
		s.logger.Error("preference lookup failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "preference lookup failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, prefs, s.logger)
}

func (s *Server) handleListingGet(w http.ResponseWriter, r *http.Request) {
	if s.listings == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "listings not configured")
		return
	}

	id := r.PathValue("id")
	listing, err := s.listings.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.errorResponse(w, http.StatusNotFound, "listing not found")
			return
		}
		s.logger.Error("listing lookup failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "listing lookup failed")
		return
	}

	// ?user= marks the listing viewed for that user's preferences.
	if user := r.URL.Query().Get("user"); user != "" && s.memory != nil {
		s.memory.MarkViewed(r.Context(), user, id)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listing, s.logger)
}

func (s *Server) handleListingQR(w http.ResponseWriter, r *http.Request) {
	if s.listings == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "listings not configured")
		return
	}

	id := r.PathValue("id")
	if _, err := s.listings.Get(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.errorResponse(w, http.StatusNotFound, "listing not found")
			return
		}
		s.logger.Error("listing lookup failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "listing lookup failed")
		return
	}

	size := 256
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			s.errorResponse(w, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	base := s.publicBaseURL
	if base == "" {
		base = "http://" + r.Host
	}
	url := fmt.Sprintf("%s/v1/listings/%s", base, id)

	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		s.logger.Error("qr encode failed", "error", err, "listing", id)
		s.errorResponse(w, http.StatusInternalServerError, "qr encode failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	if _, err := w.Write(png); err != nil {
		s.logger.Debug("failed to write QR response", "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	type statsResponse struct {
		Version        string                   `json:"version"`
		Uptime         string                   `json:"uptime"`
		QueriesServed  int64                    `json:"queries_served"`
		AvgLatencyMs   int64                    `json:"avg_latency_ms"`
		LastQueryAt    string                   `json:"last_query_at,omitempty"`
		ActiveSessions int                      `json:"active_sessions"`
		Sessions       int                      `json:"sessions"`
		Messages       int                      `json:"messages"`
		Listings       *listings.Stats          `json:"listings,omitempty"`
		Tokens         *usage.Summary           `json:"tokens,omitempty"`
		TokensByModel  map[string]usage.Summary `json:"tokens_by_model,omitempty"`
	}

	snap := s.stats.Snapshot()
	resp := statsResponse{
		Version:       buildinfo.Version,
		Uptime:        buildinfo.Uptime().String(),
		QueriesServed: snap.Queries,
		AvgLatencyMs:  snap.AvgLatencyMs,
		LastQueryAt:   snap.LastQueryAt,
	}

	if s.memory != nil {
		resp.ActiveSessions = s.memory.ActiveSessionCount()
	}
	if s.memoryStore != nil {
		sessions, messages, err := s.memoryStore.Counts(r.Context())
		if err != nil {
			s.logger.Warn("memory counts failed", "error", err)
		} else {
			resp.Sessions = sessions
			resp.Messages = messages
		}
	}
	if s.listings != nil {
		st, err := s.listings.Stats(r.Context())
		if err != nil {
			s.logger.Warn("listing stats failed", "error", err)
		} else {
			resp.Listings = st
		}
	}
	if s.usage != nil {
		sum, err := s.usage.Totals(r.Context())
		if err != nil {
			s.logger.Warn("usage totals failed", "error", err)
		} else {
			resp.Tokens = sum
		}
		byModel, err := s.usage.TotalsByModel(r.Context())
		if err != nil {
			s.logger.Warn("usage by model failed", "error", err)
		} else if len(byModel) > 0 {
			resp.TokensByModel = byModel
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}
