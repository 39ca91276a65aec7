// Package usage provides persistent token accounting for LLM calls.
// Records are append-only, fed from llm_response events on the bus,
// and aggregated for the stats endpoint. Unlike the in-memory daily
// counters the MQTT telemetry keeps, these survive restarts.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Record is one LLM call's token spend.
type Record struct {
	ID           string
	CreatedAt    time.Time
	Source       string // publishing component: "agent", "titler", ...
	Model        string
	InputTokens  int
	OutputTokens int
}

// Summary holds aggregated token totals.
type Summary struct {
	Requests     int64 `json:"requests"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Store is an append-only token usage store over a shared database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a usage store on the given database.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "usage")}
}

// Migrate creates the usage schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS token_usage (
		id            TEXT PRIMARY KEY,
		created_at    TEXT NOT NULL,
		source        TEXT NOT NULL,
		model         TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_token_usage_created ON token_usage(created_at);
	CREATE INDEX IF NOT EXISTS idx_token_usage_model ON token_usage(model);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate token usage schema: %w", err)
	}
	return nil
}

// Record persists one usage record. A missing ID gets a UUIDv7; a zero
// CreatedAt gets the current time.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO token_usage (id, created_at, source, model, input_tokens, output_tokens)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.Source,
		rec.Model,
		rec.InputTokens,
		rec.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// Totals returns all-time aggregated token totals.
func (s *Store) Totals(ctx context.Context) (*Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		 FROM token_usage`)

	var sum Summary
	if err := row.Scan(&sum.Requests, &sum.InputTokens, &sum.OutputTokens); err != nil {
		return nil, fmt.Errorf("query usage totals: %w", err)
	}
	return &sum, nil
}

// TotalsByModel returns aggregated token totals grouped by model,
// heaviest output first.
func (s *Store) TotalsByModel(ctx context.Context) (map[string]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model, COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		 FROM token_usage
		 GROUP BY model
		 ORDER BY SUM(output_tokens) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query usage by model: %w", err)
	}
	defer rows.Close()

	result := make(map[string]Summary)
	for rows.Next() {
		var model string
		var sum Summary
		if err := rows.Scan(&model, &sum.Requests, &sum.InputTokens, &sum.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan usage by model: %w", err)
		}
		result[model] = sum
	}
	return result, rows.Err()
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
