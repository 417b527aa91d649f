package graph

import (
	"log/slog"

	"factorylift/internal/component"
	"factorylift/internal/metrics"
)

// Builder merges declared and implicit dependencies into a Graph.
type Builder struct {
	logger  *slog.Logger
	metrics *metrics.Collector
}

func NewBuilder(logger *slog.Logger, m *metrics.Collector) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger, metrics: m}
}

// Build creates one node per component and an edge for every dependency.
// Targets absent from comps become placeholder nodes so no edge dangles.
// Implicit edges are added before declared ones.
func (b *Builder) Build(comps []*component.Component) *Graph {
	g := NewGraph()
	for _, c := range comps {
		g.AddComponent(c)
	}

	for _, c := range comps {
		from := c.ID()
		for _, d := range c.Implicit {
			b.link(g, from, d.Kind, d.Name, RelationFor(c.Kind, d.Kind), d.Location)
		}
	}

	for _, c := range comps {
		from := c.ID()
		for _, bucket := range component.ResolvableKinds {
			kind, _ := bucket.TargetKind()
			for _, name := range c.Declared.Names(bucket) {
				b.link(g, from, kind, name, RelationDependsOn, "dependsOn")
			}
		}
		for _, expr := range c.Declared.Unparsed {
			g.Gaps = append(g.Gaps, Gap{From: from, Target: expr, Relation: RelationDependsOn, Reason: ReasonUnparsed})
			b.logger.Debug("declared dependency not parsed", "component", from, "expression", expr)
		}
	}
	return g
}

func (b *Builder) link(g *Graph, from string, kind component.Kind, name string, rel RelationKind, loc string) {
	to, created := g.ensureNode(kind, name)
	if created {
		b.metrics.PlaceholderAdded()
	}
	if g.Nodes[to].Placeholder {
		g.Gaps = append(g.Gaps, Gap{From: from, Target: name, TargetKind: kind, Relation: rel, Reason: ReasonNotFound})
		b.logger.Warn("reference target not found", "from", from, "target", to, "relation", rel)
	}
	g.AddEdge(Edge{From: from, To: to, Relation: rel, Location: loc})
}

// RelationFor labels an inferred edge by the kinds at both ends.
func RelationFor(from, to component.Kind) RelationKind {
	switch {
	case from == component.KindTrigger && to == component.KindPipeline:
		return RelationTriggers
	case from == component.KindPipeline && to == component.KindPipeline:
		return RelationExecutes
	case to == component.KindDataset:
		return RelationUses
	case from == component.KindDataset && to == component.KindLinkedService:
		return RelationUses
	}
	return RelationReferences
}

// Build is a shorthand for NewBuilder(nil, nil).Build.
func Build(comps []*component.Component) *Graph {
	return NewBuilder(nil, nil).Build(comps)
}
