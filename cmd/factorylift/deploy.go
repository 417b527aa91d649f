package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"factorylift/internal/deploy"
	"factorylift/internal/transform"

	"github.com/spf13/cobra"
)

var (
	dryRun     bool
	deployDir  string
	workspace  string
	leaveInert bool
)

func init() {
	deployCmd.Flags().BoolVar(&dryRun, "dry-run", true, "Write definitions to disk instead of calling the destination")
	deployCmd.Flags().StringVar(&deployDir, "dir", "", "Dry-run output directory (default <output.dir>/deploy)")
	deployCmd.Flags().StringVar(&workspace, "workspace", "", "Destination workspace (overrides output.workspace)")

	resolveInvokesCmd.Flags().BoolVar(&leaveInert, "leave-inert", false, "Deactivate invoke activities whose target is still missing")
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy stored pipelines in dependency order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dryRun {
			return errors.New("only --dry-run deployment is available")
		}
		ctx := cmd.Context()

		store, err := initStore()
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		pipes, err := store.LoadPipelines(ctx)
		if err != nil {
			return fmt.Errorf("failed to load pipelines: %w", err)
		}
		plan, err := store.LoadPlan(ctx)
		if err != nil {
			return fmt.Errorf("failed to load deployment order: %w", err)
		}
		if len(plan.Order) == 0 {
			return fmt.Errorf("no deployment order in %s, run migrate first", cfg.Output.DBPath)
		}

		dir := deployDir
		if dir == "" {
			dir = filepath.Join(cfg.Output.Dir, "deploy")
		}
		ws := workspace
		if ws == "" {
			ws = cfg.Output.Workspace
		}

		byName := make(map[string]*transform.Pipeline, len(pipes))
		for _, p := range pipes {
			byName[p.Name] = p
		}

		fmt.Printf("🚀 Deploying %d pipelines to %s...\n", len(plan.Order), dir)
		res, err := deploy.NewSequencer(deploy.NewDryRunDeployer(dir, ws),
			deploy.WithArtifactIndex(store),
			deploy.WithRecorder(store),
			deploy.WithLogger(logger),
			deploy.WithMetrics(collector),
		).Run(ctx, plan, byName)
		if err != nil {
			return err
		}

		// Resolved references are written back so a later run sees them.
		if err := store.SavePipelines(ctx, pipes); err != nil {
			return fmt.Errorf("failed to save pipelines: %w", err)
		}
		if err := writeJSON(filepath.Join(dir, "artifacts.json"), map[string]any{"artifacts": res.Deployed}); err != nil {
			return err
		}

		fmt.Printf("✅ %d deployed, %d failed, %d missing\n", len(res.Deployed), len(res.Failed), len(res.Missing))
		for name, n := range res.Inert {
			fmt.Printf("  ⚠️  %s: %d invoke activities left inactive\n", name, n)
		}
		for _, f := range res.Failed {
			fmt.Printf("  ❌ %v\n", f)
		}
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d pipelines failed to deploy", len(res.Failed))
		}
		return nil
	},
}

var resolveInvokesCmd = &cobra.Command{
	Use:   "resolve-invokes <artifacts.json>",
	Short: "Fill pending invoke references from a report of deployed artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		artifacts, err := deploy.LoadArtifactReport(args[0])
		if err != nil {
			return err
		}

		store, err := initStore()
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		for _, a := range artifacts {
			if err := store.RecordArtifact(ctx, a); err != nil {
				return fmt.Errorf("failed to record artifact %q: %w", a.Name, err)
			}
		}
		pipes, err := store.LoadPipelines(ctx)
		if err != nil {
			return fmt.Errorf("failed to load pipelines: %w", err)
		}

		lookup := deploy.StaticLookup(artifacts)
		var resolved, unresolved int
		for _, p := range pipes {
			r, u, err := deploy.ResolvePending(ctx, p, lookup, leaveInert)
			if err != nil {
				return err
			}
			resolved += r
			unresolved += u
			if u > 0 {
				fmt.Printf("  ⚠️  %s: %d references still unresolved\n", p.Name, u)
			}
		}
		if err := store.SavePipelines(ctx, pipes); err != nil {
			return fmt.Errorf("failed to save pipelines: %w", err)
		}
		fmt.Printf("🔗 %d invoke references resolved, %d unresolved\n", resolved, unresolved)
		return nil
	},
}
