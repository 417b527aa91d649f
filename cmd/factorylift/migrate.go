package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"factorylift/internal/generator"
	"factorylift/internal/pipeline"
	"factorylift/internal/planner"

	"github.com/spf13/cobra"
)

var (
	outDir      string
	orderFormat string
)

func init() {
	transformCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (overrides output.dir)")
	migrateCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (overrides output.dir)")
	orderCmd.Flags().StringVar(&orderFormat, "format", "text", "Output format: text, json or mermaid")
}

func outputDir() string {
	if outDir != "" {
		return outDir
	}
	return cfg.Output.Dir
}

var transformCmd = &cobra.Command{
	Use:   "transform [source]",
	Short: "Rewrite every pipeline of an export without touching the database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := sourceArg(args)
		if err != nil {
			return err
		}
		opts, err := migrationOptions(source)
		if err != nil {
			return err
		}
		dir := outputDir()
		report := generator.NewMigrationReport("transform", source, dir)

		res, err := pipeline.NewMigration(opts,
			pipeline.WithLogger(logger),
			pipeline.WithMetrics(collector),
			pipeline.WithReport(report),
		).Run(cmd.Context())
		if err != nil && !planner.IsCycle(err) {
			return err
		}
		if err != nil {
			fmt.Printf("⚠️  %v\n", err)
		}
		return writeTransformOutputs(dir, res)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [source]",
	Short: "Run every stage and store the results for deployment",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := sourceArg(args)
		if err != nil {
			return err
		}
		opts, err := migrationOptions(source)
		if err != nil {
			return err
		}

		store, err := initStore()
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		dir := outputDir()
		report := generator.NewMigrationReport("migrate", source, dir)
		res, runErr := pipeline.NewMigration(opts,
			pipeline.WithStore(store),
			pipeline.WithLogger(logger),
			pipeline.WithMetrics(collector),
			pipeline.WithReport(report),
		).Run(cmd.Context())
		if runErr != nil && !planner.IsCycle(runErr) {
			return runErr
		}

		if err := writeTransformOutputs(dir, res); err != nil {
			return err
		}
		gen := &generator.MermaidGenerator{}
		if err := writeText(filepath.Join(dir, "graph.mmd"), gen.GenerateArtifactGraph(res.Snapshot.Graph)); err != nil {
			return err
		}
		if res.Plan != nil {
			if err := writeText(filepath.Join(dir, "deployment.mmd"), gen.GenerateDeploymentOrder(res.Plan)); err != nil {
				return err
			}
		}
		if err := report.Save(filepath.Join(dir, "report.json")); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}

		c := res.Changes
		fmt.Printf("🔄 Changes since last run: %d added, %d changed, %d removed, %d unchanged\n",
			len(c.Added), len(c.Changed), len(c.Removed), c.Unchanged)
		fmt.Printf("✅ Migration written to %s\n", dir)
		return runErr
	},
}

func writeTransformOutputs(dir string, res *pipeline.Result) error {
	if err := writeJSON(filepath.Join(dir, "pipelines.json"), res.Pipelines); err != nil {
		return fmt.Errorf("failed to write pipelines: %w", err)
	}

	failures := make(map[string]string, len(res.Failures))
	names := make([]string, 0, len(res.Failures))
	for name, err := range res.Failures {
		failures[name] = err.Error()
		names = append(names, name)
	}
	sort.Strings(names)
	if err := writeJSON(filepath.Join(dir, "failures.json"), failures); err != nil {
		return fmt.Errorf("failed to write failures: %w", err)
	}

	fmt.Printf("📦 %d pipelines transformed, %d failed\n", len(res.Pipelines), len(names))
	for _, name := range names {
		fmt.Printf("  ❌ %s: %s\n", name, failures[name])
	}
	return nil
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Compute the deployment order from the stored artifact graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadStoredGraph(cmd)
		if err != nil {
			return err
		}
		plan, err := planner.BuildPlan(planner.FromGraph(g))
		if err != nil {
			return err
		}

		switch strings.ToLower(orderFormat) {
		case "json":
			data, err := marshalIndent(plan)
			if err != nil {
				return err
			}
			fmt.Print(data)
		case "mermaid":
			fmt.Print((&generator.MermaidGenerator{}).GenerateDeploymentOrder(plan))
		case "text":
			fmt.Printf("🧭 %d pipelines in %d levels (%d iterations)\n", len(plan.Order), len(plan.Levels()), plan.Iterations)
			for level, names := range plan.Levels() {
				fmt.Printf("  level %d: %s\n", level, strings.Join(names, ", "))
			}
			for _, rec := range plan.Order {
				if len(rec.UnresolvedTargets) > 0 {
					fmt.Printf("  ⚠️  %s invokes missing %s\n", rec.Pipeline, strings.Join(rec.UnresolvedTargets, ", "))
				}
			}
		default:
			return fmt.Errorf("unknown order format %q", orderFormat)
		}
		return nil
	},
}
