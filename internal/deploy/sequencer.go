package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"factorylift/internal/metrics"
	"factorylift/internal/planner"
	"factorylift/internal/transform"
)

// Definition is the payload sent to the destination for one pipeline.
type Definition struct {
	Name       string                       `json:"name"`
	Properties transform.PipelineProperties `json:"properties"`
}

// DefinitionOf strips engine bookkeeping from a transformed pipeline.
func DefinitionOf(p *transform.Pipeline) Definition {
	return Definition{Name: p.Name, Properties: p.Properties}
}

// Lookup finds a deployed artifact by source pipeline name.
type Lookup func(ctx context.Context, name string) (Artifact, bool, error)

// ResolvePending fills every pending invoke reference of p that lookup can
// answer. With leaveInert set, references that stay unresolved deactivate
// their invoke activity. It returns the number of references resolved and
// left unresolved.
func ResolvePending(ctx context.Context, p *transform.Pipeline, lookup Lookup, leaveInert bool) (resolved, unresolved int, err error) {
	for _, ref := range p.Pending {
		if ref.IsResolved() {
			resolved++
			continue
		}
		art, ok, err := lookup(ctx, ref.IntendedTarget)
		if err != nil {
			return resolved, unresolved, fmt.Errorf("look up invoked pipeline %q: %w", ref.IntendedTarget, err)
		}
		if ok && art.ID != "" && p.Resolve(ref, transform.ResolvedTarget{PipelineID: art.ID, WorkspaceID: art.WorkspaceID}) {
			resolved++
			continue
		}
		unresolved++
		if leaveInert {
			p.LeaveInert(ref, "has no deployed artifact")
		}
	}
	return resolved, unresolved, nil
}

// Result summarizes one sequenced deployment.
type Result struct {
	Deployed []Artifact     `json:"deployed"`
	Failed   []*DeployError `json:"-"`
	// Missing lists planned pipelines with no transformed definition.
	Missing []string `json:"missing,omitempty"`
	// Inert counts invoke activities left inactive per pipeline.
	Inert map[string]int `json:"inert,omitempty"`
}

// Sequencer deploys pipelines one at a time in plan order. A pipeline is
// submitted only after every pipeline it invokes has been attempted.
type Sequencer struct {
	deployer Deployer
	index    ArtifactIndex
	recorder ArtifactRecorder
	logger   *slog.Logger
	metrics  *metrics.Collector
}

type Option func(*Sequencer)

// WithArtifactIndex adds a fallback lookup for targets deployed by earlier runs.
func WithArtifactIndex(idx ArtifactIndex) Option { return func(s *Sequencer) { s.index = idx } }

func WithRecorder(r ArtifactRecorder) Option { return func(s *Sequencer) { s.recorder = r } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option { return func(s *Sequencer) { s.metrics = m } }

func NewSequencer(d Deployer, opts ...Option) *Sequencer {
	s := &Sequencer{deployer: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run deploys pipes following plan. Pending invoke references are filled from
// artifacts created earlier in this run, then from the artifact index; the
// rest are left inert. A failed pipeline does not stop the run, but its
// invokers see it as undeployed. Only context cancellation aborts.
func (s *Sequencer) Run(ctx context.Context, plan *planner.Plan, pipes map[string]*transform.Pipeline) (*Result, error) {
	res := &Result{Inert: map[string]int{}}
	created := make(map[string]Artifact)
	lookup := func(ctx context.Context, name string) (Artifact, bool, error) {
		if a, ok := created[name]; ok {
			return a, true, nil
		}
		if s.index == nil {
			return Artifact{}, false, nil
		}
		return s.index.LookupArtifact(ctx, name)
	}

	for _, rec := range plan.Order {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p, ok := pipes[rec.Pipeline]
		if !ok {
			res.Missing = append(res.Missing, rec.Pipeline)
			s.logger.Warn("planned pipeline has no transformed definition", "pipeline", rec.Pipeline)
			continue
		}

		_, unresolved, err := ResolvePending(ctx, p, lookup, true)
		if err != nil {
			s.fail(res, rec.Pipeline, err)
			continue
		}
		if unresolved > 0 {
			res.Inert[rec.Pipeline] = unresolved
		}

		art, err := s.deployer.Deploy(ctx, DefinitionOf(p))
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.fail(res, rec.Pipeline, err)
			continue
		}
		if art.Name == "" {
			art.Name = rec.Pipeline
		}
		created[rec.Pipeline] = art
		res.Deployed = append(res.Deployed, art)
		s.metrics.PipelineDeployed("deployed")
		s.logger.Info("pipeline deployed", "pipeline", rec.Pipeline, "level", rec.Level, "id", art.ID, "inert", unresolved)

		if s.recorder != nil {
			if err := s.recorder.RecordArtifact(ctx, art); err != nil {
				s.logger.Warn("record deployed artifact failed", "pipeline", rec.Pipeline, "err", err)
			}
		}
	}
	return res, nil
}

func (s *Sequencer) fail(res *Result, pipeline string, err error) {
	de := &DeployError{Pipeline: pipeline, Err: err}
	res.Failed = append(res.Failed, de)
	s.metrics.PipelineDeployed("failed")
	s.logger.Error("pipeline deployment failed", "pipeline", pipeline, "err", err)
}
