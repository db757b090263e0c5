package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/oleg121203/atlas-core/config"
	"github.com/oleg121203/atlas-core/engine"
	"github.com/oleg121203/atlas-core/events"
	"github.com/oleg121203/atlas-core/goal"
	"github.com/oleg121203/atlas-core/llm"
	"github.com/oleg121203/atlas-core/loop"
	"github.com/oleg121203/atlas-core/metrics"
	"github.com/oleg121203/atlas-core/model"
	"github.com/oleg121203/atlas-core/patterns"
	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/planner"
	"github.com/oleg121203/atlas-core/regen"
	"github.com/oleg121203/atlas-core/storage"
	"github.com/oleg121203/atlas-core/tools"
	"github.com/oleg121203/atlas-core/tools/file"
	"github.com/oleg121203/atlas-core/tools/memory"
	"github.com/oleg121203/atlas-core/tools/web"
)

// App wires configuration into the running agent: NATS, storage, tools,
// planners and the execution loop.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	natsConn       *nats.Conn
	embeddedServer *server.Server
	js             jetstream.JetStream

	// Components
	store         *storage.Store
	publisher     *events.Publisher
	metrics       *metrics.Metrics
	metricsServer *http.Server
	registry      *tools.Registry
	library       *patterns.Library
	watcher       *patterns.Watcher
	pipeline      *planner.Pipeline
	runner        *loop.Runner
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Start initializes and starts all components.
func (a *App) Start(ctx context.Context) error {
	// Start NATS (embedded or connect to external)
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	// Initialize storage
	store, err := storage.NewStore(ctx, a.js)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	a.store = store

	a.publisher = events.NewPublisher(a.natsConn, a.logger)
	a.metrics = metrics.New()
	if a.cfg.Metrics.Addr != "" {
		a.startMetricsServer()
	}

	// Tool registry
	registry, err := a.buildToolRegistry()
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}
	a.registry = registry

	// Model registry and LLM client
	modelRegistry := a.buildModelRegistry()
	client := llm.NewClient(modelRegistry,
		llm.WithLogger(a.logger),
		llm.WithHTTPClient(&http.Client{Timeout: a.cfg.Models.Timeout}))

	// Pattern library
	pipelineOpts := []planner.PipelineOption{planner.WithLogger(a.logger)}
	if a.cfg.Patterns.Dir != "" {
		a.library = patterns.NewLibrary(a.cfg.Patterns.Dir, a.logger)
		if err := a.library.Reload(); err != nil {
			return fmt.Errorf("load pattern library: %w", err)
		}
		if a.cfg.Patterns.Watch {
			watcher, err := patterns.NewWatcher(a.library, a.logger)
			if err != nil {
				return fmt.Errorf("create pattern watcher: %w", err)
			}
			if err := watcher.Start(ctx); err != nil {
				return fmt.Errorf("start pattern watcher: %w", err)
			}
			a.watcher = watcher
		}
		pipelineOpts = append(pipelineOpts, planner.WithLibrary(a.library))
	}

	a.pipeline = planner.NewPipeline(client, a.registry, pipelineOpts...)

	// Execution loop collaborators
	eng := engine.New(a.registry, engine.WithLogger(a.logger))
	checker := goal.NewChecker(goal.WithLogger(a.logger))

	regenOpts := []regen.Option{
		regen.WithLogger(a.logger),
		regen.WithDetector(regen.NewRegistryDetector(a.registry)),
		regen.WithStrategy(regen.NewStubToolStrategy(a.registry)),
	}
	if a.cfg.Tools.PluginsDir != "" {
		regenOpts = append(regenOpts, regen.WithDetector(regen.NewPluginScanner(a.cfg.Tools.PluginsDir)))
	}
	manager := regen.NewManager(regenOpts...)

	a.runner = loop.NewRunner(eng, checker, manager,
		loop.WithLogger(a.logger),
		loop.WithConfig(loop.Config{
			MaxRetryAttempts: a.cfg.Loop.MaxRetryAttempts,
			RetryDelay:       a.cfg.Loop.RetryDelay,
		}),
		loop.WithPublisher(a.publisher),
		loop.WithRecorder(a.store),
		loop.WithMetrics(a.metrics))

	a.logger.Info("Atlas ready",
		"version", Version,
		"workspace", a.cfg.Workspace.Path,
		"tools", len(a.registry.Names()))
	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		// Connect to external NATS
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		// Start embedded NATS server
		a.logger.Info("Starting embedded NATS server")
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		// Connect to embedded server
		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	// Get JetStream context
	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	return nil
}

func (a *App) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.metricsServer = &http.Server{
		Addr:    a.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		a.logger.Info("Metrics server listening", "addr", a.cfg.Metrics.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()
}

// buildToolRegistry registers the built-in executors, wrapped with call
// recording, and applies the allowlist.
func (a *App) buildToolRegistry() (*tools.Registry, error) {
	registry := tools.NewRegistry()

	var allowed map[string]bool
	if len(a.cfg.Tools.Allowlist) > 0 {
		allowed = make(map[string]bool, len(a.cfg.Tools.Allowlist))
		for _, name := range a.cfg.Tools.Allowlist {
			allowed[name] = true
		}
	}

	executors := []tools.Executor{
		file.NewExecutor(a.cfg.Workspace.Path),
		web.NewExecutor(30 * time.Second),
		memory.NewExecutor(),
	}

	for _, exec := range executors {
		recorded := tools.NewRecordingExecutor(exec, a.store, a.logger)
		for _, def := range exec.ListTools() {
			if allowed != nil && !allowed[def.Name] {
				a.logger.Debug("Tool excluded by allowlist", "tool", def.Name)
				continue
			}
			if err := registry.RegisterTool(def, recorded); err != nil {
				return nil, fmt.Errorf("register %s: %w", def.Name, err)
			}
		}
	}

	return registry, nil
}

// buildModelRegistry layers configured endpoints and capability assignments
// over the built-in defaults.
func (a *App) buildModelRegistry() *model.Registry {
	registry := model.NewDefaultRegistry()

	for name, ep := range a.cfg.Models.Endpoints {
		registry.SetEndpoint(name, &model.EndpointConfig{
			Provider:  ep.Provider,
			URL:       ep.URL,
			Model:     ep.Model,
			MaxTokens: ep.MaxTokens,
		})
	}
	for capName, cc := range a.cfg.Models.Capabilities {
		capability := model.ParseCapability(capName)
		if capability == "" {
			a.logger.Warn("Skipping unknown capability", "capability", capName)
			continue
		}
		registry.SetCapability(capability, &model.CapabilityConfig{
			Preferred: cc.Preferred,
			Fallback:  cc.Fallback,
		})
	}
	if a.cfg.Models.Default != "" {
		registry.SetDefault(a.cfg.Models.Default)
	}

	return registry
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(timeout time.Duration) {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Failed to stop pattern watcher", "error", err)
		}
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		a.metricsServer.Shutdown(ctx)
		cancel()
	}

	if a.publisher != nil {
		if err := a.publisher.Flush(timeout); err != nil {
			a.logger.Warn("Failed to flush events", "error", err)
		}
	}

	if a.natsConn != nil {
		a.natsConn.Drain()
		a.natsConn.Close()
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}

	a.logger.Info("Atlas shutdown complete")
}

// RunGoal plans and executes one goal through the retry loop.
func (a *App) RunGoal(ctx context.Context, description string, criteria map[string]string) (*plan.Result, error) {
	g, err := plan.NewGoal(description, criteria)
	if err != nil {
		return nil, err
	}
	if err := a.store.SaveGoal(ctx, g); err != nil {
		a.logger.Warn("Failed to persist goal", "goal", g.ID, "error", err)
	}

	p, err := a.pipeline.BuildPlan(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}
	if err := a.store.SavePlan(ctx, p); err != nil {
		a.logger.Warn("Failed to persist plan", "plan", p.ID, "error", err)
	}

	return a.runner.Run(ctx, g, p)
}

// BuildPlan builds a plan without executing it.
func (a *App) BuildPlan(ctx context.Context, description string) (*plan.Plan, error) {
	g, err := plan.NewGoal(description, nil)
	if err != nil {
		return nil, err
	}
	return a.pipeline.BuildPlan(ctx, g)
}

// RunREPL runs the interactive loop.
func (a *App) RunREPL(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("atlas> ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		// Check for exit commands
		if input == "quit" || input == "exit" {
			return nil
		}

		// Check for built-in commands
		if strings.HasPrefix(input, "/") {
			a.handleCommand(input)
			continue
		}

		// Execute as a goal
		result, err := a.RunGoal(ctx, input, nil)
		if err != nil && !errors.Is(err, loop.ErrRetriesExhausted) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if errors.Is(err, loop.ErrRetriesExhausted) {
			fmt.Fprintf(os.Stderr, "Goal not achieved: %v\n", err)
		}
		if result != nil {
			printResult(result)
		}
		fmt.Println()
	}
}

func (a *App) handleCommand(input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	cmd := parts[0]
	switch cmd {
	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /help     - Show this help")
		fmt.Println("  /status   - Show current status")
		fmt.Println("  /tools    - List available tools")
		fmt.Println("  /config   - Show current configuration")
		fmt.Println("  quit/exit - Exit the session")
		fmt.Println()
		fmt.Println("Or type a goal description to plan and execute it.")

	case "/status":
		fmt.Printf("Workspace: %s\n", a.cfg.Workspace.Path)
		fmt.Printf("Retry budget: %d attempts, %s delay\n",
			a.cfg.Loop.MaxRetryAttempts, a.cfg.Loop.RetryDelay)
		if a.embeddedServer != nil {
			fmt.Println("NATS: embedded")
		} else {
			fmt.Printf("NATS: %s\n", a.cfg.NATS.URL)
		}
		if a.library != nil {
			fmt.Printf("Patterns: %d loaded from %s\n", a.library.Len(), a.cfg.Patterns.Dir)
		}

	case "/tools":
		fmt.Println("Available tools:")
		for _, def := range a.registry.List() {
			fmt.Printf("  %s - %s\n", def.Name, def.Description)
		}

	case "/config":
		fmt.Printf("Loop:\n")
		fmt.Printf("  Max attempts: %d\n", a.cfg.Loop.MaxRetryAttempts)
		fmt.Printf("  Retry delay: %s\n", a.cfg.Loop.RetryDelay)
		fmt.Printf("\nWorkspace:\n")
		fmt.Printf("  Path: %s\n", a.cfg.Workspace.Path)
		fmt.Printf("\nNATS:\n")
		if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
			fmt.Printf("  URL: %s\n", a.cfg.NATS.URL)
		} else {
			fmt.Println("  Mode: embedded")
		}

	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		fmt.Println("Type /help for available commands.")
	}
}

// printResult renders one execution result for the terminal.
func printResult(result *plan.Result) {
	if result.Success {
		fmt.Println("✓ " + result.Message)
	} else {
		fmt.Printf("✗ %s\n", result.Message)
		if result.Error != "" {
			fmt.Printf("  error: %s\n", result.Error)
		}
	}
	if len(result.Data) > 0 {
		data, err := json.MarshalIndent(result.Data, "  ", "  ")
		if err == nil {
			fmt.Printf("  data: %s\n", string(data))
		}
	}
}
