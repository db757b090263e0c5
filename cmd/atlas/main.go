// Package main provides the atlas binary entry point.
// Atlas is a hierarchical task-planning agent that executes goals through
// a self-correcting retry loop over a tool registry.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/oleg121203/atlas-core/llm/providers"

	"github.com/oleg121203/atlas-core/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "atlas"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		workspace  string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "atlas",
		Short: "Hierarchical task-planning agent",
		Long: `Atlas turns a goal into a plan through strategic, tactical and
operational planner tiers, executes the plan against a tool registry, and
retries with self-regeneration until the goal is achieved or the retry
budget runs out.

Run without arguments for an interactive session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, workspace, logLevel, func(ctx context.Context, app *App) error {
				return app.RunREPL(ctx)
			})
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&workspace, "workspace", "", "Workspace directory for file tools")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	var criteria string
	runCmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Execute one goal and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")
			return withApp(configPath, workspace, logLevel, func(ctx context.Context, app *App) error {
				result, err := app.RunGoal(ctx, description, config.ParseCriteria(criteria))
				if result != nil {
					printResult(result)
				}
				return err
			})
		},
	}
	runCmd.Flags().StringVar(&criteria, "criteria", "", `Goal criteria as "key=hint,key=hint"`)
	cmd.AddCommand(runCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "plan <goal>",
		Short: "Build a plan for a goal and print it without executing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")
			return withApp(configPath, workspace, logLevel, func(ctx context.Context, app *App) error {
				p, err := app.BuildPlan(ctx, description)
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(p, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, workspace, logLevel, func(ctx context.Context, app *App) error {
				for _, def := range app.registry.List() {
					fmt.Printf("  %s - %s\n", def.Name, def.Description)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// withApp loads configuration, starts the application and runs fn under a
// signal-aware context, then shuts everything down.
func withApp(configPath, workspace, logLevel string, fn func(context.Context, *App) error) error {
	cfg, logger, err := loadConfig(configPath, workspace, logLevel)
	if err != nil {
		return err
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Shutdown(10 * time.Second)

	return fn(ctx, app)
}

// loadConfig resolves configuration from flags and files and builds the
// logger from the resulting level.
func loadConfig(configPath, workspace, logLevel string) (*config.Config, *slog.Logger, error) {
	var cfg *config.Config
	var err error

	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.NewLoader(nil).Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if workspace != "" {
		cfg.Workspace.Path = workspace
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	return cfg, logger, nil
}
