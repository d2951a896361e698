package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/svnsyncd/svnsyncd/internal/config"
	"github.com/svnsyncd/svnsyncd/internal/reconcile"
	"github.com/svnsyncd/svnsyncd/internal/svn"
	"github.com/svnsyncd/svnsyncd/internal/webhook"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Sync command flags
	syncName string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "svnsyncd",
	Short: "Reconcile local directories against subversion repositories",
	Long: `svnsyncd keeps local directories in line with a subversion repository
according to a declarative list of named rules: tracked checkouts are kept
up to date incrementally, snapshot exports are written once and locked
read-only.

It can run as a oneshot reconciliation (via cron or a systemd timer) or as
a long-running webhook daemon triggered by post-commit hooks.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the configured controls once",
	Long: `Sync runs every configured control in order: checkouts are created or
updated, exports are written and locked read-only. A failing control does
not stop the batch; the run fails afterwards with an error summarizing
the failures.

With --name only the first control with that name runs, and its error
propagates directly.`,
	RunE: runSync,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the configured controls and their local state",
	RunE:  runList,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook daemon",
	Long: `Serve starts a long-running HTTP server that accepts HMAC-signed
post-commit events and triggers reconciliation runs. The configuration
file is watched for changes and the control set is rebuilt on the fly.`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("svnsyncd %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/svnsyncd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Sync command flags
	syncCmd.Flags().StringVar(&syncName, "name", "", "reconcile only the control with this name")

	// Add commands
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, _, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	manager, err := buildManager(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if syncName != "" {
		if err := manager.ReconcileByName(ctx, syncName); err != nil {
			logger.Error("reconciliation failed", "name", syncName, "error", err)
			return err
		}
		return nil
	}

	if _, err := manager.ReconcileAll(ctx); err != nil {
		logger.Error("reconciliation failed", "error", err)
		return err
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, _, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := svn.NewShellClient(cfg.Auth.Username, cfg.Auth.PasswordFile)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Type", "Repository", "Target", "State"})
	for _, rule := range cfg.Controls {
		t.AppendRow(table.Row{rule.Name, rule.Type, ruleRepository(rule), rule.TargetPath, detectState(client, rule)})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, configPath, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Serve.Enabled {
		return fmt.Errorf("serve is not enabled in the configuration")
	}

	manager, err := buildManager(ctx, cfg, logger)
	if err != nil {
		return err
	}

	rebuild := func(cfg *config.Config) (*reconcile.Manager, error) {
		return buildManager(ctx, cfg, logger)
	}

	server, err := webhook.NewServer(cfg, configPath, manager, rebuild, logger)
	if err != nil {
		return fmt.Errorf("failed to create webhook server: %w", err)
	}

	return server.Start(ctx)
}

// buildManager wires the svn client, the control factory and the
// manager from a loaded configuration.
func buildManager(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*reconcile.Manager, error) {
	client := svn.NewShellClient(cfg.Auth.Username, cfg.Auth.PasswordFile)
	factory := reconcile.NewFactory(client, logger)

	controls, err := factory.BuildAll(ctx, cfg.Controls)
	if err != nil {
		return nil, fmt.Errorf("failed to build controls: %w", err)
	}

	manager := reconcile.NewManager(logger)
	for _, control := range controls {
		manager.Append(control)
	}
	return manager, nil
}

// ruleRepository renders the repository column for a rule.
func ruleRepository(rule config.Rule) string {
	if rule.RepositoryURL != "" {
		return rule.RepositoryURL
	}
	return "latest under " + rule.ParentURL
}

// detectState inspects the local target of a rule without mutating it.
func detectState(client svn.Client, rule config.Rule) string {
	if _, err := os.Stat(rule.TargetPath); err != nil {
		if os.IsNotExist(err) {
			return "missing"
		}
		return "unknown"
	}

	if rule.Type == config.TypeCheckout {
		if client.IsWorkingCopy(rule.TargetPath) {
			return "working copy"
		}
		return "not a working copy"
	}
	return "present"
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// loadConfig resolves the config path and loads it, returning both so
// serve mode can watch the file for changes.
func loadConfig(logger *slog.Logger) (*config.Config, string, error) {
	configPath := cfgFile
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = fmt.Sprintf("%s/.config/svnsyncd/config.yaml", home)
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}

	logger.Debug("configuration loaded",
		"controls", len(cfg.Controls),
		"serve_enabled", cfg.Serve.Enabled)

	return cfg, configPath, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
