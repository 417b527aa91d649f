package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"factorylift/internal/config"
	"factorylift/internal/logging"
	"factorylift/internal/metrics"
	"factorylift/internal/pipeline"
	"factorylift/internal/storage"
	"factorylift/internal/transform"

	"github.com/spf13/cobra"
)

var (
	cfgPath     string
	dbPath      string
	metricsFile string
	logLevel    string

	cfg       *config.Config
	logger    *slog.Logger
	collector *metrics.Collector
)

var rootCmd = &cobra.Command{
	Use:   "factorylift",
	Short: "factorylift migrates data factory exports into destination pipeline definitions",
	Long: `factorylift parses a data factory export, builds the artifact dependency
graph, rewrites pipelines for the destination platform and orders them for
deployment so invoked pipelines always exist before their callers.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil || cfg.Output.MetricsFile == "" {
			return nil
		}
		if err := collector.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the command")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(resolveInvokesCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.Output.DBPath = dbPath
	}
	if metricsFile != "" {
		c.Output.MetricsFile = metricsFile
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := logging.NewLogger(os.Stderr, c.Log.Level, c.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(l)

	cfg, logger, collector = c, l, metrics.New()
	return nil
}

func initStore() (*storage.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.Output.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return storage.NewSQLiteStore(cfg.Output.DBPath)
}

// sourceArg prefers the positional argument over source.path from config.
func sourceArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Source.Path != "" {
		return cfg.Source.Path, nil
	}
	return "", fmt.Errorf("no source given: pass a path or set source.path in %s", cfgPath)
}

func migrationOptions(source string) (pipeline.Options, error) {
	policy, err := transform.ParsePolicy(cfg.Transform.Verification)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Source:          source,
		ConnectionsFile: cfg.Mappings.Connections,
		ActivitiesFile:  cfg.Mappings.Activities,
		FuzzyThreshold:  cfg.Resolver.FuzzyThreshold,
		CacheSize:       cfg.Resolver.CacheSize,
		Workers:         cfg.Transform.Workers,
		Policy:          policy,
		SupportedTypes:  cfg.Transform.Supported,
	}, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeText(path, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(body), 0o644)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
