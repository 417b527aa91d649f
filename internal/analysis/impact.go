package analysis

import (
	"fmt"
	"sort"

	"factorylift/internal/component"
	"factorylift/internal/graph"
)

// ImpactReport summarizes the components affected by a change to, or the loss
// of, one component.
type ImpactReport struct {
	Target             *graph.Node   `json:"target"`
	DirectlyAffected   []*graph.Node `json:"directlyAffected"`
	IndirectlyAffected []*graph.Node `json:"indirectlyAffected"`
	// Pipelines lists every affected pipeline name, direct or transitive.
	Pipelines []string `json:"pipelines"`
}

// Analyzer performs impact analysis on the artifact graph.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// AnalyzeImpact walks dependents of id. Nodes one edge away are direct, the
// rest of the reverse closure is indirect. The target itself is never listed.
func (a *Analyzer) AnalyzeImpact(id string) (*ImpactReport, error) {
	target, err := a.resolve(id)
	if err != nil {
		return nil, err
	}
	report := &ImpactReport{
		Target:             target,
		DirectlyAffected:   []*graph.Node{},
		IndirectlyAffected: []*graph.Node{},
		Pipelines:          []string{},
	}

	seen := map[string]bool{target.ID: true}

	// 1. Find Direct Impacts
	var frontier []*graph.Node
	for _, dep := range sortNodes(a.g.GetDependents(target.ID)) {
		if seen[dep.ID] {
			continue
		}
		seen[dep.ID] = true
		report.DirectlyAffected = append(report.DirectlyAffected, dep)
		frontier = append(frontier, dep)
	}

	// 2. Find Indirect Impacts (breadth first over dependents)
	for len(frontier) > 0 {
		var next []*graph.Node
		for _, node := range frontier {
			for _, dep := range sortNodes(a.g.GetDependents(node.ID)) {
				if seen[dep.ID] {
					continue
				}
				seen[dep.ID] = true
				report.IndirectlyAffected = append(report.IndirectlyAffected, dep)
				next = append(next, dep)
			}
		}
		frontier = next
	}

	for _, n := range append(append([]*graph.Node{}, report.DirectlyAffected...), report.IndirectlyAffected...) {
		if n.Kind == component.KindPipeline {
			report.Pipelines = append(report.Pipelines, n.Name)
		}
	}
	sort.Strings(report.Pipelines)
	return report, nil
}

// resolve accepts a full "kind:name" id or a bare name that matches exactly
// one node.
func (a *Analyzer) resolve(id string) (*graph.Node, error) {
	if n, ok := a.g.Nodes[id]; ok {
		return n, nil
	}
	ids := a.g.Lookup(id)
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("component %q not found in graph", id)
	case 1:
		return a.g.Nodes[ids[0]], nil
	}
	return nil, fmt.Errorf("component name %q is ambiguous: %v", id, ids)
}

func sortNodes(nodes []*graph.Node) []*graph.Node {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}
