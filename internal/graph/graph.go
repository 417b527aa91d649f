package graph

import (
	"fmt"
	"sort"

	"factorylift/internal/component"
)

// Graph manages nodes and their relationships.
type Graph struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges []Edge           `json:"edges"`
	Gaps  []Gap            `json:"gaps"`

	edgeIndex map[edgeKey]int
	// Index for lookup by bare name: Name -> []ID
	nameIndex map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[string]*Node),
		Edges:     []Edge{},
		Gaps:      []Gap{},
		edgeIndex: make(map[edgeKey]int),
		nameIndex: make(map[string][]string),
	}
}

// AddComponent adds a component as a node. A placeholder with the same id is
// replaced by the real node.
func (g *Graph) AddComponent(c *component.Component) *Node {
	if c == nil {
		return nil
	}
	id := c.ID()
	n := &Node{
		ID:        id,
		Name:      c.Name,
		Kind:      c.Kind,
		SubType:   c.SubType,
		Label:     c.Name,
		Status:    c.Status,
		Component: c,
	}
	if _, exists := g.Nodes[id]; !exists {
		g.nameIndex[c.Name] = append(g.nameIndex[c.Name], id)
	}
	g.Nodes[id] = n
	return n
}

// ensureNode returns the id of the node for kind/name, synthesizing a
// placeholder when none exists. created reports whether one was synthesized.
func (g *Graph) ensureNode(kind component.Kind, name string) (id string, created bool) {
	id = component.ID(kind, name)
	if _, ok := g.Nodes[id]; ok {
		return id, false
	}
	g.Nodes[id] = &Node{
		ID:          id,
		Name:        name,
		Kind:        kind,
		Label:       name + " " + PlaceholderSuffix,
		Placeholder: true,
	}
	g.nameIndex[name] = append(g.nameIndex[name], id)
	return id, true
}

// AddEdge inserts an edge unless an equal (from, to, relation) edge exists.
// A dependsOn edge that duplicates an executes or triggers edge between the
// same pair is dropped, whichever is added first. It reports whether the
// edge set changed.
func (g *Graph) AddEdge(e Edge) bool {
	key := edgeKey{e.From, e.To, e.Relation}
	if _, dup := g.edgeIndex[key]; dup {
		return false
	}
	if e.Relation == RelationDependsOn && g.hasStrongEdge(e.From, e.To) {
		return false
	}
	if e.Relation == RelationExecutes || e.Relation == RelationTriggers {
		g.removeEdge(edgeKey{e.From, e.To, RelationDependsOn})
	}
	g.edgeIndex[key] = len(g.Edges)
	g.Edges = append(g.Edges, e)
	return true
}

func (g *Graph) hasStrongEdge(from, to string) bool {
	_, exec := g.edgeIndex[edgeKey{from, to, RelationExecutes}]
	_, trig := g.edgeIndex[edgeKey{from, to, RelationTriggers}]
	return exec || trig
}

func (g *Graph) removeEdge(key edgeKey) {
	idx, ok := g.edgeIndex[key]
	if !ok {
		return
	}
	g.Edges = append(g.Edges[:idx], g.Edges[idx+1:]...)
	g.reindexEdges()
}

func (g *Graph) reindexEdges() {
	g.edgeIndex = make(map[edgeKey]int, len(g.Edges))
	for i, e := range g.Edges {
		g.edgeIndex[edgeKey{e.From, e.To, e.Relation}] = i
	}
}

// RebuildIndices restores lookup indexes after the graph was decoded.
func (g *Graph) RebuildIndices() {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	if g.Gaps == nil {
		g.Gaps = []Gap{}
	}
	g.reindexEdges()
	g.nameIndex = make(map[string][]string)
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		g.nameIndex[n.Name] = append(g.nameIndex[n.Name], id)
	}
}

// Lookup returns node ids whose bare name matches.
func (g *Graph) Lookup(name string) []string {
	return g.nameIndex[name]
}

// NodeIDs returns every node id in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Placeholders returns the synthesized nodes in sorted order.
func (g *Graph) Placeholders() []*Node {
	var out []*Node
	for _, id := range g.NodeIDs() {
		if n := g.Nodes[id]; n.Placeholder {
			out = append(out, n)
		}
	}
	return out
}

// GetDependencies returns all nodes that the given node depends on.
func (g *Graph) GetDependencies(id string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.From == id {
			if node, ok := g.Nodes[edge.To]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}

// GetDependents returns all nodes that depend on the given node.
func (g *Graph) GetDependents(id string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.To == id {
			if node, ok := g.Nodes[edge.From]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}

// EdgesOf returns edges of one relation kind in insertion order.
func (g *Graph) EdgesOf(rel RelationKind) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Relation == rel {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks that every edge endpoint is a node.
func (g *Graph) Validate() error {
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return fmt.Errorf("edge %s -%s-> %s: source node missing", e.From, e.Relation, e.To)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return fmt.Errorf("edge %s -%s-> %s: target node missing", e.From, e.Relation, e.To)
		}
	}
	return nil
}
