package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"factorylift/internal/analysis"
	"factorylift/internal/component"
	"factorylift/internal/generator"
	"factorylift/internal/graph"
	"factorylift/internal/index"
	"factorylift/internal/retrieval"

	"github.com/spf13/cobra"
)

var (
	exportPath  string
	focusIDs    []string
	focusHops   int
	graphKinds  []string
	graphRels   []string
	graphFormat string
	graphOut    string
	impactJSON  bool
)

func init() {
	parseCmd.Flags().StringVar(&exportPath, "export", "", "Also write the artifact graph as JSON to this file")

	graphCmd.Flags().StringSliceVar(&focusIDs, "focus", nil, "Limit the graph to the neighbourhood of these components (kind:name)")
	graphCmd.Flags().IntVar(&focusHops, "hops", retrieval.DefaultConfig().MaxHops, "Hops to follow from focus components")
	graphCmd.Flags().StringSliceVar(&graphKinds, "kind", nil, "Render only these component kinds")
	graphCmd.Flags().StringSliceVar(&graphRels, "relation", nil, "Follow only these relations when focusing")
	graphCmd.Flags().StringVar(&graphFormat, "format", "mermaid", "Output format: mermaid or json")
	graphCmd.Flags().StringVarP(&graphOut, "out", "o", "", "Write to this file instead of stdout")

	impactCmd.Flags().BoolVar(&impactJSON, "json", false, "Print the report as JSON")
}

var parseCmd = &cobra.Command{
	Use:   "parse [source]",
	Short: "Parse an export and store its artifact graph",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source, err := sourceArg(args)
		if err != nil {
			return err
		}

		store, err := initStore()
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		fmt.Printf("📂 Parsing %s...\n", source)
		idx := index.NewIndexer(logger, collector)
		snap, err := idx.BuildGraph(source)
		if err != nil {
			return err
		}

		if err := store.SaveComponents(ctx, snap.Components); err != nil {
			return fmt.Errorf("failed to save components: %w", err)
		}
		if err := store.SaveGraph(ctx, snap.Graph); err != nil {
			return fmt.Errorf("failed to save graph: %w", err)
		}
		if exportPath != "" {
			if err := idx.SaveGraph(snap.Graph, exportPath); err != nil {
				return err
			}
			fmt.Printf("💾 Graph exported to %s\n", exportPath)
		}

		fmt.Printf("✅ %d components, %d edges, %d placeholders, %d gaps\n",
			len(snap.Components), len(snap.Graph.Edges), len(snap.Graph.Placeholders()), len(snap.Graph.Gaps))
		for _, kind := range component.Kinds {
			if n := len(snap.Catalog.OfKind(kind)); n > 0 {
				fmt.Printf("  -> %-20s %d\n", kind, n)
			}
		}
		return nil
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Render the stored artifact graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadStoredGraph(cmd)
		if err != nil {
			return err
		}

		if len(focusIDs) > 0 {
			rc := retrieval.DefaultConfig()
			rc.MaxHops = focusHops
			if len(graphRels) > 0 {
				rc.AllowedKinds = make(map[graph.RelationKind]bool, len(graphRels))
				for _, r := range graphRels {
					rc.AllowedKinds[graph.RelationKind(r)] = true
				}
			}
			sub := retrieval.Extract(g, focusIDs, rc)
			for _, id := range sub.Missing {
				fmt.Fprintf(os.Stderr, "⚠️  focus component %s is not in the graph\n", id)
			}
			g = sub.Graph(g)
		}

		var body string
		switch strings.ToLower(graphFormat) {
		case "mermaid":
			gen := &generator.MermaidGenerator{}
			if len(graphKinds) > 0 {
				gen.Kinds = make(map[component.Kind]bool, len(graphKinds))
				for _, k := range graphKinds {
					gen.Kinds[component.Kind(k)] = true
				}
			}
			body = gen.GenerateArtifactGraph(g)
		case "json":
			data, err := marshalIndent(g)
			if err != nil {
				return err
			}
			body = data
		default:
			return fmt.Errorf("unknown graph format %q", graphFormat)
		}
		return emit(graphOut, body)
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact <component>",
	Short: "List what breaks if a component changes or is missing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadStoredGraph(cmd)
		if err != nil {
			return err
		}
		report, err := analysis.NewAnalyzer(g).AnalyzeImpact(args[0])
		if err != nil {
			return err
		}
		if impactJSON {
			data, err := marshalIndent(report)
			if err != nil {
				return err
			}
			fmt.Print(data)
			return nil
		}

		fmt.Printf("🔍 Impact of %s\n", report.Target.ID)
		fmt.Printf("  -> %d components directly affected\n", len(report.DirectlyAffected))
		for _, n := range report.DirectlyAffected {
			fmt.Printf("     %s\n", n.ID)
		}
		fmt.Printf("  -> %d components indirectly affected\n", len(report.IndirectlyAffected))
		for _, n := range report.IndirectlyAffected {
			fmt.Printf("     %s\n", n.ID)
		}
		if len(report.Pipelines) > 0 {
			fmt.Printf("  -> pipelines: %s\n", strings.Join(report.Pipelines, ", "))
		}
		return nil
	},
}

func loadStoredGraph(cmd *cobra.Command) (*graph.Graph, error) {
	store, err := initStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	g, err := store.LoadGraph(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	if len(g.Nodes) == 0 {
		return nil, fmt.Errorf("no artifact graph in %s, run parse first", cfg.Output.DBPath)
	}
	return g, nil
}

func marshalIndent(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func emit(path, body string) error {
	if path == "" {
		fmt.Print(body)
		return nil
	}
	if err := writeText(path, body); err != nil {
		return err
	}
	fmt.Printf("✅ Written to %s\n", path)
	return nil
}
