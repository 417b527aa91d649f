package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"factorylift/internal/component"
	"factorylift/internal/extractor"
	"factorylift/internal/generator"
	"factorylift/internal/graph"
	"factorylift/internal/index"
	"factorylift/internal/metrics"
	"factorylift/internal/planner"
	"factorylift/internal/resolver"
	"factorylift/internal/storage"
	"factorylift/internal/transform"
)

// Options configures one migration run.
type Options struct {
	Source string

	ConnectionsFile string
	ActivitiesFile  string
	FuzzyThreshold  float64
	CacheSize       int

	Workers        int
	Policy         transform.VerificationPolicy
	SupportedTypes []string
}

// Migration runs parse-all, resolve-all, transform, order and persist as
// separate stages. Transformation starts only after every component is
// parsed and the catalog is frozen.
type Migration struct {
	opts    Options
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Collector
	out     io.Writer
	report  *generator.MigrationReport
}

type Option func(*Migration)

// WithStore persists every stage output to s.
func WithStore(s storage.Store) Option { return func(m *Migration) { m.store = s } }

func WithLogger(l *slog.Logger) Option {
	return func(m *Migration) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(c *metrics.Collector) Option { return func(m *Migration) { m.metrics = c } }

// WithOutput sets where progress lines are printed.
func WithOutput(w io.Writer) Option { return func(m *Migration) { m.out = w } }

func WithReport(r *generator.MigrationReport) Option { return func(m *Migration) { m.report = r } }

func NewMigration(opts Options, options ...Option) *Migration {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = 0.8
	}
	m := &Migration{opts: opts, logger: slog.Default(), out: os.Stdout}
	for _, o := range options {
		o(m)
	}
	if m.report == nil {
		m.report = generator.NewMigrationReport("migrate", opts.Source, "")
	}
	return m
}

// Result is everything a run produced.
type Result struct {
	Snapshot *index.Snapshot
	// Pipelines holds successfully transformed pipelines sorted by name.
	Pipelines []*transform.Pipeline
	// Failures maps a pipeline name to the hard error that stopped it.
	Failures map[string]error
	Plan     *planner.Plan
	Changes  ChangeSet
	Report   *generator.MigrationReport
}

// PipelineMap indexes the transformed pipelines by name.
func (r *Result) PipelineMap() map[string]*transform.Pipeline {
	out := make(map[string]*transform.Pipeline, len(r.Pipelines))
	for _, p := range r.Pipelines {
		out[p.Name] = p
	}
	return out
}

// ChangeSet compares component fingerprints with the previous stored run.
type ChangeSet struct {
	Added     []string `json:"added,omitempty"`
	Changed   []string `json:"changed,omitempty"`
	Removed   []string `json:"removed,omitempty"`
	Unchanged int      `json:"unchanged"`
}

// Run executes every stage. A cyclic invoke graph is returned as a
// *planner.ValidationError alongside a Result that still carries the parsed
// graph and transformed pipelines; other stage errors abort the run.
func (m *Migration) Run(ctx context.Context) (*Result, error) {
	res := &Result{Failures: map[string]error{}, Report: m.report}

	snap, err := m.parseStage()
	if err != nil {
		return nil, err
	}
	res.Snapshot = snap

	if m.store != nil {
		changes, err := m.changeStage(ctx, snap.Components)
		if err != nil {
			return nil, err
		}
		res.Changes = changes
	}

	chain, err := m.resolveStage()
	if err != nil {
		return nil, err
	}

	if err := m.transformStage(ctx, snap, chain, res); err != nil {
		return nil, err
	}

	planErr := m.orderStage(snap.Graph, res)

	if m.store != nil {
		if err := m.persistStage(ctx, res); err != nil {
			return nil, err
		}
	}
	m.summarize(res)
	return res, planErr
}

func (m *Migration) parseStage() (*index.Snapshot, error) {
	h := m.report.BeginStage("parse")
	fmt.Fprintf(m.out, "📂 Parsing %s...\n", m.opts.Source)

	snap, err := index.NewIndexer(m.logger, m.metrics).BuildGraph(m.opts.Source)
	if err == nil {
		err = snap.Graph.Validate()
	}
	if err != nil {
		m.endStage(h, "", nil, err)
		return nil, fmt.Errorf("parse stage: %w", err)
	}
	for rel, n := range snap.Graph.RelationCounts() {
		m.logger.Debug("graph relations", "relation", rel, "edges", n)
	}
	m.endStage(h, "", map[string]float64{
		"components":   float64(len(snap.Components)),
		"nodes":        float64(len(snap.Graph.Nodes)),
		"edges":        float64(len(snap.Graph.Edges)),
		"placeholders": float64(len(snap.Graph.Placeholders())),
	}, nil)

	for _, gap := range snap.Graph.Gaps {
		switch gap.Reason {
		case graph.ReasonNotFound:
			m.report.AddSignal("reference_not_found", "parse", "warning", gap.From,
				fmt.Sprintf("%s %q is referenced but not defined in the export", gap.TargetKind, gap.Target), 0)
		case graph.ReasonUnparsed:
			m.report.AddSignal("dependency_unparsed", "parse", "info", gap.From,
				fmt.Sprintf("declared dependency %q could not be parsed", gap.Target), 0)
		}
	}
	for _, c := range snap.Components {
		for _, w := range c.Warnings {
			m.report.AddSignal("component_warning", "parse", severityFor(c.Status), c.ID(), w, 0)
		}
	}

	fmt.Fprintf(m.out, "📊 Graph: %d components, %d edges, %d placeholders\n",
		len(snap.Components), len(snap.Graph.Edges), len(snap.Graph.Placeholders()))
	return snap, nil
}

func severityFor(s component.Status) string {
	if s == component.StatusUnsupported {
		return "critical"
	}
	return "warning"
}

// changeStage diffs fingerprints against the stored component set.
func (m *Migration) changeStage(ctx context.Context, comps []*component.Component) (ChangeSet, error) {
	var cs ChangeSet
	previous, err := m.store.Fingerprints(ctx)
	if err != nil {
		return cs, fmt.Errorf("load previous fingerprints: %w", err)
	}
	if len(previous) == 0 {
		return cs, nil
	}
	seen := make(map[string]bool, len(comps))
	for _, c := range comps {
		id := c.ID()
		seen[id] = true
		old, ok := previous[id]
		switch {
		case !ok:
			cs.Added = append(cs.Added, id)
		case old != extractor.Fingerprint(c):
			cs.Changed = append(cs.Changed, id)
		default:
			cs.Unchanged++
		}
	}
	for id := range previous {
		if !seen[id] {
			cs.Removed = append(cs.Removed, id)
		}
	}
	sort.Strings(cs.Added)
	sort.Strings(cs.Changed)
	sort.Strings(cs.Removed)
	fmt.Fprintf(m.out, "📝 Since last run: %d added, %d changed, %d removed\n", len(cs.Added), len(cs.Changed), len(cs.Removed))
	return cs, nil
}

func (m *Migration) resolveStage() (*resolver.Chain, error) {
	h := m.report.BeginStage("resolve")
	rctx := resolver.NewContext()
	var err error

	if m.opts.ConnectionsFile != "" {
		var bridge map[string]resolver.ConnectionDescriptor
		bridge, err = resolver.LoadConnectionConfig(m.opts.ConnectionsFile)
		if err == nil {
			for name, d := range bridge {
				rctx.Bridge[name] = d
			}
		}
	}
	if err == nil && m.opts.ActivitiesFile != "" {
		var acts *resolver.Context
		acts, err = resolver.LoadActivityMapping(m.opts.ActivitiesFile)
		if err == nil {
			rctx.Merge(acts)
		}
	}

	var chain *resolver.Chain
	if err == nil {
		chain, err = resolver.NewDefaultChain(rctx, m.opts.FuzzyThreshold, m.opts.CacheSize,
			resolver.WithLogger(m.logger), resolver.WithMetrics(m.metrics))
	}
	m.endStage(h, "", map[string]float64{
		"bridge_entries":   float64(len(rctx.Bridge)),
		"activity_entries": float64(len(rctx.ByReferenceID) + len(rctx.ByActivityName)),
	}, err)
	if err != nil {
		return nil, fmt.Errorf("resolve stage: %w", err)
	}
	return chain, nil
}

func (m *Migration) transformStage(ctx context.Context, snap *index.Snapshot, conns transform.ConnectionResolver, res *Result) error {
	h := m.report.BeginStage("transform")

	opts := []transform.Option{transform.WithLogger(m.logger), transform.WithMetrics(m.metrics)}
	if len(m.opts.SupportedTypes) > 0 {
		opts = append(opts, transform.WithVerifier(transform.NewStaticVerifier(m.opts.SupportedTypes), m.opts.Policy))
	} else {
		opts = append(opts, transform.WithVerifier(nil, m.opts.Policy))
	}
	tr := transform.New(snap.Catalog, conns, opts...)

	pipes := snap.Catalog.OfKind(component.KindPipeline)
	fmt.Fprintf(m.out, "🔧 Transforming %d pipelines with %d workers...\n", len(pipes), m.opts.Workers)

	// One slot per pipeline keeps output order independent of scheduling.
	outs := make([]*transform.Pipeline, len(pipes))
	errs := make([]error, len(pipes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i, c := range pipes {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outs[i], errs[i] = tr.TransformPipeline(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.endStage(h, "", nil, err)
		return fmt.Errorf("transform stage: %w", err)
	}

	warnings := 0
	for i, c := range pipes {
		if errs[i] != nil {
			res.Failures[c.Name] = errs[i]
			m.report.AddSignal("pipeline_failed", "transform", "critical", c.ID(), errs[i].Error(), 0)
			continue
		}
		res.Pipelines = append(res.Pipelines, outs[i])
		for _, w := range outs[i].Warnings {
			warnings++
			m.report.AddSignal("activity_warning", "transform", "warning", c.ID(), w, 0)
		}
	}

	status := "ok"
	if len(res.Failures) > 0 {
		status = "partial"
	}
	m.endStage(h, status, map[string]float64{
		"pipelines":   float64(len(pipes)),
		"transformed": float64(len(res.Pipelines)),
		"failed":      float64(len(res.Failures)),
		"warnings":    float64(warnings),
	}, nil)
	fmt.Fprintf(m.out, "  -> %d transformed, %d failed, %d warnings\n", len(res.Pipelines), len(res.Failures), warnings)
	return nil
}

// orderStage plans over every parsed pipeline, not only the transformed ones,
// so a cycle is reported even when a member failed to transform.
func (m *Migration) orderStage(g *graph.Graph, res *Result) error {
	h := m.report.BeginStage("order")
	names, invokes := planner.FromGraph(g)
	plan, err := planner.BuildPlan(names, invokes)
	if err != nil {
		var ve *planner.ValidationError
		if errors.As(err, &ve) {
			for _, c := range ve.Cycles {
				m.report.AddSignal("invoke_cycle", "order", "critical", c.Cycle[0], c.Error(), 0)
			}
		}
		m.endStage(h, "", nil, err)
		fmt.Fprintf(m.out, "❌ Deployment order: %v\n", err)
		return err
	}
	res.Plan = plan

	levels := len(plan.Levels())
	m.metrics.SetDeploymentLevels(levels)
	for pipeline, targets := range plan.Unresolved() {
		for _, target := range targets {
			m.report.AddSignal("invoke_target_missing", "order", "warning", component.ID(component.KindPipeline, pipeline),
				fmt.Sprintf("invoked pipeline %q is not in the export; it must already be deployed or the invoke stays inert", target), 0)
		}
	}
	m.endStage(h, "", map[string]float64{
		"pipelines":  float64(len(plan.Order)),
		"levels":     float64(levels),
		"iterations": float64(plan.Iterations),
	}, nil)
	fmt.Fprintf(m.out, "🧭 Deployment order: %d pipelines in %d levels\n", len(plan.Order), levels)
	return nil
}

func (m *Migration) persistStage(ctx context.Context, res *Result) error {
	h := m.report.BeginStage("persist")
	err := m.persist(ctx, res)
	m.endStage(h, "", nil, err)
	if err != nil {
		return fmt.Errorf("persist stage: %w", err)
	}
	return nil
}

func (m *Migration) persist(ctx context.Context, res *Result) error {
	if err := m.store.SaveComponents(ctx, res.Snapshot.Components); err != nil {
		return fmt.Errorf("save components: %w", err)
	}
	if err := m.store.SaveGraph(ctx, res.Snapshot.Graph); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}
	if err := m.store.SavePipelines(ctx, res.Pipelines); err != nil {
		return fmt.Errorf("save pipelines: %w", err)
	}
	failures := make(map[string]string, len(res.Failures))
	for name, err := range res.Failures {
		failures[name] = err.Error()
	}
	if err := m.store.SaveFailures(ctx, failures); err != nil {
		return fmt.Errorf("save failures: %w", err)
	}
	if res.Plan != nil {
		if err := m.store.SavePlan(ctx, res.Plan); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
	}
	return nil
}

func (m *Migration) summarize(res *Result) {
	s := &m.report.Summary
	s.Components = map[string]int{}
	s.Statuses = map[string]int{}
	for _, c := range res.Snapshot.Components {
		s.Components[string(c.Kind)]++
		s.Statuses[string(c.Status)]++
	}
	s.Placeholders = len(res.Snapshot.Graph.Placeholders())
	s.Pipelines = len(res.Pipelines)
	s.FailedPipelines = len(res.Failures)
	if res.Plan != nil {
		s.DeploymentLevels = len(res.Plan.Levels())
		m.report.DeploymentOrder = res.Plan.Names()
	}
}

// endStage records a stage. An empty status becomes "ok", or "error" when
// err is set.
func (m *Migration) endStage(h generator.StageHandle, status string, counters map[string]float64, err error) {
	if status == "" {
		status = "ok"
		if err != nil {
			status = "error"
		}
	}
	d := m.report.EndStage(h, status, counters, nil, err)
	m.metrics.ObserveStage(h.Name(), d)
	m.logger.Debug("stage finished", "stage", h.Name(), "duration", d.Round(time.Millisecond), "err", err)
}
