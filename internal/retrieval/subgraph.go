package retrieval

import (
	"sort"

	"factorylift/internal/graph"
)

// Config controls how focus subgraphs are extracted.
type Config struct {
	MaxHops      int
	AllowedKinds map[graph.RelationKind]bool

	// SkipPlaceholders stops traversal at synthesized nodes.
	SkipPlaceholders bool
}

func DefaultConfig() Config {
	return Config{
		MaxHops:      2,
		AllowedKinds: nil,
	}
}

// Subgraph is a bounded neighbourhood of the artifact graph.
type Subgraph struct {
	MaxHops int            `json:"maxHops"`
	SeedIDs []string       `json:"seedIds"`
	NodeIDs []string       `json:"nodeIds"`
	Depth   map[string]int `json:"depth"`
	Edges   []graph.Edge   `json:"edges"`
	Missing []string       `json:"missing,omitempty"`
}

// Graph materializes the subgraph as a standalone graph sharing g's nodes.
func (s *Subgraph) Graph(g *graph.Graph) *graph.Graph {
	out := graph.NewGraph()
	for _, id := range s.NodeIDs {
		if n, ok := g.Nodes[id]; ok {
			out.Nodes[id] = n
		}
	}
	out.Edges = append(out.Edges, s.Edges...)
	out.RebuildIndices()
	return out
}

// Extract walks edges in both directions from the seeds, up to cfg.MaxHops.
// Seeds that are not graph nodes are reported in Missing.
func Extract(g *graph.Graph, seeds []string, cfg Config) *Subgraph {
	if g == nil {
		return &Subgraph{}
	}
	if cfg.MaxHops < 0 {
		cfg.MaxHops = 0
	}

	seedSet := make(map[string]int)
	var missing []string
	for _, id := range seeds {
		if _, ok := g.Nodes[id]; ok {
			seedSet[id] = 0
			continue
		}
		missing = append(missing, id)
	}
	seedIDs := sortedKeys(seedSet)
	sort.Strings(missing)

	if len(seedIDs) == 0 {
		return &Subgraph{
			MaxHops: cfg.MaxHops,
			SeedIDs: seedIDs,
			NodeIDs: nil,
			Depth:   map[string]int{},
			Edges:   nil,
			Missing: missing,
		}
	}

	adj := make(map[string][]edgeHop)
	for _, e := range g.Edges {
		if !edgeAllowed(e, cfg) {
			continue
		}
		adj[e.From] = append(adj[e.From], edgeHop{to: e.To, edge: e})
		adj[e.To] = append(adj[e.To], edgeHop{to: e.From, edge: e})
	}

	visitedDepth := make(map[string]int, len(seedIDs))
	queue := make([]queueItem, 0, len(seedIDs))
	for _, id := range seedIDs {
		visitedDepth[id] = 0
		queue = append(queue, queueItem{id: id, depth: 0})
	}

	edgeSeen := make(map[string]bool)
	edges := make([]graph.Edge, 0)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= cfg.MaxHops {
			continue
		}
		if cfg.SkipPlaceholders && cur.depth > 0 && g.Nodes[cur.id].Placeholder {
			continue
		}

		for _, next := range adj[cur.id] {
			edgeKey := edgeSignature(next.edge)
			if !edgeSeen[edgeKey] {
				edgeSeen[edgeKey] = true
				edges = append(edges, next.edge)
			}

			nextDepth := cur.depth + 1
			prevDepth, seen := visitedDepth[next.to]
			if !seen || nextDepth < prevDepth {
				visitedDepth[next.to] = nextDepth
				queue = append(queue, queueItem{id: next.to, depth: nextDepth})
			}
		}
	}

	nodeIDs := sortedKeys(visitedDepth)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From == edges[j].From {
			if edges[i].To == edges[j].To {
				return string(edges[i].Relation) < string(edges[j].Relation)
			}
			return edges[i].To < edges[j].To
		}
		return edges[i].From < edges[j].From
	})

	return &Subgraph{
		MaxHops: cfg.MaxHops,
		SeedIDs: seedIDs,
		NodeIDs: nodeIDs,
		Depth:   visitedDepth,
		Edges:   edges,
		Missing: missing,
	}
}

type queueItem struct {
	id    string
	depth int
}

type edgeHop struct {
	to   string
	edge graph.Edge
}

func edgeAllowed(e graph.Edge, cfg Config) bool {
	if len(cfg.AllowedKinds) == 0 {
		return true
	}
	return cfg.AllowedKinds[e.Relation]
}

func edgeSignature(e graph.Edge) string {
	return e.From + "->" + e.To + ":" + string(e.Relation)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
