package planner

import (
	"factorylift/internal/component"
	"factorylift/internal/graph"
	"factorylift/internal/transform"
)

// FromGraph reads pipelines and their executes edges from the artifact graph.
// Placeholder pipelines are not deployable, so edges to them become
// unresolved targets.
func FromGraph(g *graph.Graph) (pipelines []string, invokes map[string][]string) {
	invokes = make(map[string][]string)
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.Kind == component.KindPipeline && !n.Placeholder {
			pipelines = append(pipelines, n.Name)
		}
	}
	for _, e := range g.EdgesOf(graph.RelationExecutes) {
		from, okFrom := g.Nodes[e.From]
		to, okTo := g.Nodes[e.To]
		if !okFrom || !okTo || from.Kind != component.KindPipeline || to.Kind != component.KindPipeline {
			continue
		}
		invokes[from.Name] = append(invokes[from.Name], to.Name)
	}
	return pipelines, invokes
}

// FromTransformed reads invoke targets from the pending references of
// transformed pipelines.
func FromTransformed(pipes []*transform.Pipeline) (pipelines []string, invokes map[string][]string) {
	invokes = make(map[string][]string)
	for _, p := range pipes {
		pipelines = append(pipelines, p.Name)
		for _, ref := range p.Pending {
			invokes[p.Name] = append(invokes[p.Name], ref.IntendedTarget)
		}
	}
	return pipelines, invokes
}
