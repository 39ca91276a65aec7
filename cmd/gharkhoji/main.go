// Gharkhoji is a conversational property-search agent for the Nepali
// real-estate market.
//
// It answers natural-language queries about rentals, sales, neighbourhoods,
// and market conditions over an HTTP API, remembers each user's preferences
// across sessions, and optionally reports runtime telemetry over MQTT and
// handles inquiries over email. Configuration is loaded from a single YAML
// file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	gharkhoji serve                  Start the API server
//	gharkhoji init [dir]             Initialize a working directory with defaults
//	gharkhoji ask <question>         Ask a single question (for testing)
//	gharkhoji seed <listings.json>   Import a listing corpus
//	gharkhoji version                Print version and build information
//	gharkhoji -o json version        Output version information as JSON
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/agent"
	"github.com/gharkhoji/gharkhoji/internal/api"
	"github.com/gharkhoji/gharkhoji/internal/buildinfo"
	"github.com/gharkhoji/gharkhoji/internal/config"
	"github.com/gharkhoji/gharkhoji/internal/connwatch"
	"github.com/gharkhoji/gharkhoji/internal/events"
	"github.com/gharkhoji/gharkhoji/internal/listings"
	"github.com/gharkhoji/gharkhoji/internal/llm"
	"github.com/gharkhoji/gharkhoji/internal/mailer"
	"github.com/gharkhoji/gharkhoji/internal/market"
	"github.com/gharkhoji/gharkhoji/internal/memory"
	"github.com/gharkhoji/gharkhoji/internal/mqtt"
	"github.com/gharkhoji/gharkhoji/internal/opstate"
	"github.com/gharkhoji/gharkhoji/internal/places"
	"github.com/gharkhoji/gharkhoji/internal/search"
	"github.com/gharkhoji/gharkhoji/internal/titler"
	"github.com/gharkhoji/gharkhoji/internal/tools"
	"github.com/gharkhoji/gharkhoji/internal/usage"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the gharkhoji command. All OS-level
// dependencies are injected as parameters:
//
//   - ctx controls the lifetime of the process. Cancelling it triggers
//     graceful shutdown of the server and background workers.
//   - stdout and stderr receive all program output. Structured logs go
//     to stdout; fatal error messages go to stderr.
//   - args is os.Args[1:], the command-line arguments after the program
//     name. We parse these manually rather than using the flag package
//     to avoid global state that interferes with parallel tests.
//
// run returns nil on clean shutdown and a non-nil error for any failure.
// The caller (main) is responsible for printing the error and exiting.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	// Parse arguments by hand. The flag package relies on package-level
	// globals (flag.CommandLine), which makes it impossible to call run()
	// concurrently from tests. Our argument surface is small enough that
	// manual parsing is clearer than bringing in a CLI framework.
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				// Collect remaining args as subcommand arguments.
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	// Default to human-readable text output.
	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, stderr, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: gharkhoji ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, cmdArgs)
	case "seed":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: gharkhoji seed <listings.json>")
		}
		return runSeed(ctx, stdout, configPath, cmdArgs[0])
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.BuildInfo()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// gharkhoji is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Gharkhoji - Conversational Property Search Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: gharkhoji [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                  Start the API server")
	fmt.Fprintln(w, "  init [dir]             Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask <question>         Ask a single question (for testing)")
	fmt.Fprintln(w, "  seed <listings.json>   Import listings into the property database")
	fmt.Fprintln(w, "  version                Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/gharkhoji/config.yaml, /etc/gharkhoji/config.yaml")
	return nil
}

// runAsk handles the "gharkhoji ask <question>" subcommand. It boots a
// minimal agent over an in-memory copy of the listing corpus (no session
// store, no background workers) and processes a single question, printing
// the reasoning trace and the answer to stdout. Useful for quick smoke
// tests and debugging without starting the server.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")

	question := strings.Join(args, " ")

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		// A one-shot question works fine against a local Ollama with the
		// built-in corpus; only an explicitly named config must exist.
		if configPath != "" {
			return err
		}
		cfg = config.Default()
		logger.Info("no config file found, using defaults")
	} else {
		logger.Info("config loaded", "path", cfgPath)
	}

	// In-memory corpus. SQLite gives every connection its own :memory:
	// database, so the pool is capped at one connection.
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return fmt.Errorf("open in-memory database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	listingStore := listings.NewStore(db, logger)
	if err := listingStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate listing store: %w", err)
	}
	if _, err := listingStore.SeedIfEmpty(ctx); err != nil {
		return fmt.Errorf("seed listings: %w", err)
	}

	llmClient := createLLMClient(cfg, logger)

	var placesProvider places.Provider
	if cfg.Places.Configured() {
		placesProvider = places.NewGoogleClient(cfg.Places.GoogleAPIKey)
	}

	registry := tools.NewRegistry(tools.Deps{
		Search:         buildSearchManager(cfg, logger),
		SearchLocation: cfg.Search.Location,
		Places:         placesProvider,
		Analyst:        market.NewAnalyst(llmClient, marketModel(cfg), cfg.Market.ContextURLs, logger),
		Listings:       listingStore,
		Logger:         logger,
	})

	// No session store and no event bus: the loop runs stateless and a
	// single response is all that escapes.
	loop := agent.NewLoop(agent.Deps{
		LLM:      llmClient,
		Model:    cfg.Models.Default,
		Registry: registry,
		Logger:   logger,
	})

	resp := loop.ProcessQuery(ctx, question, "cli")

	if len(resp.Steps) > 0 {
		fmt.Fprintln(stdout)
		for _, step := range resp.Steps {
			switch step.Kind {
			case agent.StepThought:
				fmt.Fprintf(stdout, "Thought: %s\n", step.Text)
			case agent.StepAction:
				fmt.Fprintf(stdout, "Action: %s(%s)\n", step.ActionName, step.ActionInput)
			case agent.StepObservation:
				fmt.Fprintf(stdout, "Observation: %s\n", step.Text)
			}
		}
		fmt.Fprintln(stdout)
	}
	fmt.Fprintln(stdout, resp.FinalAnswer)
	return nil
}

// runSeed handles the "gharkhoji seed <listings.json>" subcommand. It
// imports a JSON array of listings into the property database, creating
// new rows and replacing existing ones by ID.
func runSeed(ctx context.Context, stdout io.Writer, configPath string, filePath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		if configPath != "" {
			return err
		}
		cfg = config.Default()
		logger.Info("no config file found, using defaults")
	} else {
		logger.Info("config loaded", "path", cfgPath)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	dbPath := filepath.Join(cfg.DataDir, "gharkhoji.db")
	db, err := openDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer db.Close()

	store := listings.NewStore(db, logger)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate listing store: %w", err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	count, err := store.ImportJSON(ctx, f)
	if err != nil {
		return fmt.Errorf("import %s: %w", filePath, err)
	}

	logger.Info("import complete", "listings", count, "file", filePath, "db", dbPath)
	fmt.Fprintf(stdout, "Imported %d listings from %s\n", count, filePath)
	return nil
}

// runServe handles the "gharkhoji serve" subcommand. It is the primary
// operating mode: loads config, opens the database, initializes the
// agent loop with all tools, starts the enabled background workers
// (MQTT telemetry, digest mailer, inquiry intake, session titler), and
// serves the HTTP API until a shutdown signal arrives.
//
// The shutdown sequence is:
//  1. SIGINT or SIGTERM cancels the context
//  2. The MQTT publisher announces itself offline
//  3. The HTTP server drains in-flight requests
//  4. Workers and the database are closed via defers
func runServe(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Gharkhoji", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure logger now that we know the desired level and format.
	// The initial Info-level text logger is used only for the startup
	// banner; everything after this point uses the configured handler.
	{
		level := slog.LevelInfo
		if cfg.LogLevel != "" {
			// ParseLogLevel is already validated by config.Validate(), so
			// this error path should be unreachable in practice.
			level, _ = config.ParseLogLevel(cfg.LogLevel)
		}
		logger = newLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Models.Default,
		"ollama_url", cfg.Models.OllamaURL,
	)

	// Signal-driven shutdown. Everything below runs under this context,
	// so SIGINT/SIGTERM cancellation reaches every worker directly.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	// All persistent state shares one SQLite file: sessions, messages,
	// preferences, the listing corpus, and worker high-water marks.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	dbPath := filepath.Join(cfg.DataDir, "gharkhoji.db")
	db, err := openDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer db.Close()
	logger.Info("database opened", "path", dbPath)

	memStore := memory.NewStore(db, logger)
	if err := memStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate memory store: %w", err)
	}

	listingStore := listings.NewStore(db, logger)
	if err := listingStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate listing store: %w", err)
	}
	if n, err := listingStore.SeedIfEmpty(ctx); err != nil {
		return fmt.Errorf("seed listings: %w", err)
	} else if n > 0 {
		logger.Info("listing corpus seeded", "listings", n)
	}

	stateStore := opstate.NewStore(db, logger)
	if err := stateStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate operational state: %w", err)
	}

	usageStore := usage.NewStore(db, logger)
	if err := usageStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate usage store: %w", err)
	}

	// --- Event bus ---
	// Every agent step, tool call, and worker action is published here;
	// the WebSocket feed and MQTT telemetry consume it.
	bus := events.New()

	// Token accounting rides the bus: every llm_response event lands in
	// the usage store, which /v1/stats aggregates.
	recorder := usage.NewRecorder(usageStore, bus, logger)
	recorder.Start(ctx)
	defer recorder.Stop()

	// --- LLM client ---
	llmClient := createLLMClient(cfg, logger)

	// --- Dependency watchdogs ---
	// Probes external services in the background and feeds /health.
	// Ollama is watched unconditionally; the broker and mailbox watchers
	// are added by the sections that enable those workers.
	conns := connwatch.NewManager(logger)
	defer conns.Stop()
	conns.Watch(ctx, connwatch.WatcherConfig{
		Name:  "ollama",
		Probe: llmClient.Ping,
	})

	// --- Tools ---
	searchMgr := buildSearchManager(cfg, logger)
	if searchMgr == nil {
		logger.Warn("web search disabled (no provider configured)")
	}

	var placesProvider places.Provider
	if cfg.Places.Configured() {
		placesProvider = places.NewGoogleClient(cfg.Places.GoogleAPIKey)
		logger.Info("places provider configured")
	} else {
		logger.Info("places provider not configured, maps tool serves area fallbacks")
	}

	analyst := market.NewAnalyst(llmClient, marketModel(cfg), cfg.Market.ContextURLs, logger)

	registry := tools.NewRegistry(tools.Deps{
		Search:         searchMgr,
		SearchLocation: cfg.Search.Location,
		Places:         placesProvider,
		Analyst:        analyst,
		Listings:       listingStore,
		Logger:         logger,
	})
	logger.Info("tools registered", "tools", registry.Names())

	// --- Agent loop ---
	manager := memory.NewManager(memStore, logger)

	loop := agent.NewLoop(agent.Deps{
		LLM:      llmClient,
		Model:    cfg.Models.Default,
		Registry: registry,
		Memory:   manager,
		Bus:      bus,
		Logger:   logger,
	})

	// --- API server ---
	stats := &api.QueryStats{}
	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, api.Deps{
		Loop:          loop,
		Memory:        manager,
		MemoryStore:   memStore,
		Listings:      listingStore,
		Bus:           bus,
		Stats:         stats,
		Usage:         usageStore,
		Conns:         conns,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})

	// --- MQTT telemetry ---
	// Optional: publishes discovery messages and periodic state updates
	// so the agent shows up as a device in Home Assistant dashboards.
	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Enabled {
		instanceID, err := mqtt.LoadOrCreateInstanceID(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("load mqtt instance id: %w", err)
		}
		logger.Info("mqtt instance ID loaded", "instance_id", instanceID)

		dailyTokens := mqtt.NewDailyTokens(nil)
		bridge := &statsBridge{model: cfg.Models.Default, manager: manager, stats: stats}

		mqttPub = mqtt.New(cfg.MQTT, instanceID, dailyTokens, bridge, bus, logger)
		go func() {
			if err := mqttPub.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
		}()
		conns.Watch(ctx, connwatch.WatcherConfig{
			Name:  "mqtt",
			Probe: mqttPub.AwaitConnection,
		})
		logger.Info("mqtt telemetry enabled", "broker", cfg.MQTT.BrokerURL, "interval_sec", cfg.MQTT.IntervalSec)
	} else {
		logger.Info("mqtt telemetry disabled")
	}

	// --- Digest mailer ---
	// Optional: mails each configured recipient the listings matching
	// their saved preferences on a fixed cadence.
	if cfg.Email.Enabled && cfg.Email.Digest.Enabled {
		digest := mailer.NewDigest(cfg.Email, memStore, listingStore, stateStore, bus, logger)
		digest.Start(ctx)
		defer digest.Stop()
		logger.Info("digest mailer enabled",
			"recipients", len(cfg.Email.Digest.Recipients),
			"interval_hours", cfg.Email.Digest.IntervalHrs,
		)
	}

	// --- Inquiry intake ---
	// Optional: polls an IMAP mailbox for property inquiries, runs each
	// one through the agent, and mails the answer back.
	if cfg.Email.Enabled && cfg.Email.Intake.Enabled {
		box := mailer.NewMailbox(cfg.Email.IMAP, logger)
		defer box.Close()
		conns.Watch(ctx, connwatch.WatcherConfig{
			Name:  "imap",
			Probe: box.Ping,
		})

		intake := mailer.NewIntake(cfg.Email, box, loop, stateStore, bus, logger)
		intake.Start(ctx)
		defer intake.Stop()
		logger.Info("inquiry intake enabled",
			"host", cfg.Email.IMAP.Host,
			"folder", cfg.Email.IMAP.Folder,
			"interval_sec", cfg.Email.Intake.IntervalSec,
		)
	}

	// --- Session titler ---
	// Optional: names conversation sessions in the background so session
	// lists read like a history, not a pile of UUIDs.
	if cfg.Titler.Enabled {
		model := cfg.Titler.Model
		if model == "" {
			model = cfg.Models.Default
		}
		worker := titler.New(llmClient, memStore, bus, logger, titler.Config{Model: model})
		worker.Start(ctx)
		defer worker.Stop()
		logger.Info("session titler enabled", "model", model)
	}

	// --- Graceful shutdown ---
	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		// Publish MQTT offline status before disconnecting.
		if mqttPub != nil {
			offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer offlineCancel()
			if err := mqttPub.Stop(offlineCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	// Start the API server. This blocks until the server is shut down
	// (via context cancellation or fatal error).
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Gharkhoji stopped")
	return nil
}

// newLogger creates a structured logger that writes to w at the given level
// and format. Format must be "text" or "json"; any other value defaults to
// text. All log output in Gharkhoji goes through slog; this helper
// standardizes the handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations. Returns the parsed
// config, the path that was loaded, and any error.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// openDB opens the SQLite database at path with WAL journaling and a
// busy timeout, and verifies the connection before returning it.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// createLLMClient builds a multi-provider LLM client from the
// configuration. Each model listed under models.providers is mapped to
// its provider; everything else falls through to the Ollama backend.
func createLLMClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	ollamaClient := llm.NewOllamaClient(cfg.Models.OllamaURL, logger)

	multi := llm.NewMultiClient(ollamaClient)
	multi.AddProvider("ollama", ollamaClient)

	if cfg.Anthropic.APIKey != "" {
		multi.AddProvider("anthropic", llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger))
		logger.Info("anthropic provider configured")
	}

	for model, provider := range cfg.Models.Providers {
		multi.AddModel(model, provider)
	}

	return multi
}

// buildSearchManager wires the configured web search providers into a
// manager. Returns nil when no provider is configured; the search tool
// reports itself unavailable in that case.
func buildSearchManager(cfg *config.Config, logger *slog.Logger) *search.Manager {
	if !cfg.Search.Serper.Configured() && !cfg.Search.SearXNG.Configured() {
		return nil
	}

	primary := cfg.Search.Provider
	if primary == "" {
		if cfg.Search.Serper.Configured() {
			primary = "serper"
		} else {
			primary = "searxng"
		}
	}

	mgr := search.NewManager(primary)
	if cfg.Search.Serper.Configured() {
		mgr.Register(search.NewSerper(cfg.Search.Serper.APIKey))
	}
	if cfg.Search.SearXNG.Configured() {
		mgr.Register(search.NewSearXNG(cfg.Search.SearXNG.URL))
	}

	logger.Info("web search enabled", "primary", primary, "providers", mgr.Providers())
	return mgr
}

// marketModel returns the model used for market reports, defaulting to
// the primary model.
func marketModel(cfg *config.Config) string {
	if cfg.Models.Market != "" {
		return cfg.Models.Market
	}
	return cfg.Models.Default
}

// statsBridge adapts server counters, the session manager, and build
// metadata to the [mqtt.StatsSource] interface. It holds only narrow
// references via lock-protected getters, not direct pointers to
// mutable stats fields.
type statsBridge struct {
	model   string
	manager *memory.Manager
	stats   *api.QueryStats
}

func (b *statsBridge) Uptime() time.Duration    { return buildinfo.Uptime() }
func (b *statsBridge) Version() string          { return buildinfo.Version }
func (b *statsBridge) DefaultModel() string     { return b.model }
func (b *statsBridge) ActiveSessions() int      { return b.manager.ActiveSessionCount() }
func (b *statsBridge) QueriesServed() int64     { return b.stats.Queries() }
func (b *statsBridge) LastQueryTime() time.Time { return b.stats.LastQuery() }
