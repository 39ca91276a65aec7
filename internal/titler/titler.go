// Package titler provides a background worker that names untitled
// sessions. Running it out of band keeps titling off the query path
// and lets sessions that ended mid-conversation still get a name.
// Until the worker reaches a session, reads serve a provisional title
// derived from the first user message.
package titler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/events"
	"github.com/gharkhoji/gharkhoji/internal/llm"
	"github.com/gharkhoji/gharkhoji/internal/memory"
	"github.com/gharkhoji/gharkhoji/internal/prompts"
)

// Config controls the titler worker behavior.
type Config struct {
	// Model is the LLM model used for title generation.
	Model string

	// Interval between periodic scans for untitled sessions.
	// Default: 5 minutes.
	Interval time.Duration

	// Timeout per individual titling LLM call. Default: 30 seconds.
	Timeout time.Duration

	// PauseBetween is the delay between consecutive sessions, keeping
	// background titling from starving interactive queries.
	// Default: 2 seconds.
	PauseBetween time.Duration

	// BatchSize is the max number of sessions to title per scan.
	// Default: 5.
	BatchSize int

	// MinMessages is how many messages a session needs before it is
	// worth naming. Default: 4.
	MinMessages int
}

// DefaultConfig returns sensible defaults for the titler worker.
func DefaultConfig() Config {
	return Config{
		Interval:     5 * time.Minute,
		Timeout:      30 * time.Second,
		PauseBetween: 2 * time.Second,
		BatchSize:    5,
		MinMessages:  4,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.PauseBetween <= 0 {
		c.PauseBetween = d.PauseBetween
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MinMessages <= 0 {
		c.MinMessages = d.MinMessages
	}
}

// maxTranscriptBytes is the maximum transcript size sent to the LLM.
const maxTranscriptBytes = 4000

// maxTitleRunes caps generated titles; anything longer reads like a
// summary, not a subject line.
const maxTitleRunes = 80

// Worker periodically scans for untitled sessions and names them
// through the LLM.
type Worker struct {
	client llm.Client
	store  *memory.Store
	bus    *events.Bus
	logger *slog.Logger
	config Config

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a titler worker. Call Start to begin processing.
func New(client llm.Client, store *memory.Store, bus *events.Bus, logger *slog.Logger, cfg Config) *Worker {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		client: client,
		store:  store,
		bus:    bus,
		logger: logger.With("component", "titler"),
		config: cfg,
		done:   make(chan struct{}),
	}
}

// Start begins the background worker. It scans immediately to catch up
// on sessions left unnamed by a previous run, then periodically.
func (w *Worker) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(workerCtx)
}

// Stop cancels the worker and waits for its goroutine to exit.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	w.logger.Info("titler starting", "model", w.config.Model, "interval", w.config.Interval)
	w.scan(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("titler stopped")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *Worker) scan(ctx context.Context) {
	sessions, err := w.store.UntitledSessions(ctx, w.config.MinMessages, w.config.BatchSize)
	if err != nil {
		w.logger.Warn("list untitled sessions", "error", err)
		return
	}
	if len(sessions) == 0 {
		return
	}

	w.logger.Info("found untitled sessions", "count", len(sessions))

	for i, sess := range sessions {
		if ctx.Err() != nil {
			return
		}
		if err := w.title(ctx, sess); err != nil {
			w.logger.Warn("titling failed", "session", sess.ID, "error", err)
		}
		if i < len(sessions)-1 && !sleepCtx(ctx, w.config.PauseBetween) {
			return
		}
	}
}

// title names one session: build a transcript, ask the model for a
// JSON title, store it.
func (w *Worker) title(ctx context.Context, sess memory.Session) error {
	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	messages, err := w.store.SessionMessages(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	transcript := buildTranscript(messages)
	if transcript == "" {
		return fmt.Errorf("session has no usable messages")
	}

	var result struct {
		Title string `json:"title"`
	}
	if err := llm.GenerateJSON(ctx, w.client, w.config.Model, prompts.SessionTitle(transcript), &result); err != nil {
		return fmt.Errorf("generate title: %w", err)
	}

	title := cleanTitle(result.Title)
	if title == "" {
		return fmt.Errorf("model returned an empty title")
	}

	if err := w.store.SetSessionTitle(ctx, sess.ID, title); err != nil {
		return fmt.Errorf("store title: %w", err)
	}

	w.logger.Info("session titled", "session", sess.ID, "title", title)
	w.bus.Emit(events.SourceTitler, events.KindSessionTitled, map[string]any{
		"session_id": sess.ID,
		"title":      title,
	})
	return nil
}

// buildTranscript creates a role-labelled transcript for the titling
// prompt, truncated at maxTranscriptBytes.
func buildTranscript(messages []memory.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Role == memory.RoleSystem {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, content)
		if b.Len() > maxTranscriptBytes {
			b.WriteString("... (truncated)\n")
			break
		}
	}
	return b.String()
}

// cleanTitle normalizes model output into a usable title: quotes and
// surrounding whitespace stripped, internal whitespace collapsed,
// length capped.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxTitleRunes {
		s = strings.TrimSpace(string(runes[:maxTitleRunes]))
	}
	return s
}

// sleepCtx sleeps for d or until ctx is cancelled. Returns true if the
// sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
