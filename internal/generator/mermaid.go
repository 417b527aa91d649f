package generator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"factorylift/internal/component"
	"factorylift/internal/graph"
	"factorylift/internal/planner"
)

var mermaidUnsafe = regexp.MustCompile(`[^a-z0-9_]`)

// MermaidGenerator renders the artifact graph and the deployment order as
// Mermaid flowcharts.
type MermaidGenerator struct {
	// Kinds limits the rendered nodes. Empty renders every kind.
	Kinds map[component.Kind]bool
}

// GenerateArtifactGraph draws one subgraph per component kind. Placeholder
// nodes and unsupported components get their own classes.
func (m *MermaidGenerator) GenerateArtifactGraph(g *graph.Graph) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("graph LR\n")
	sb.WriteString("    classDef missing stroke-dasharray: 5 5,fill:#fff4e5\n")
	sb.WriteString("    classDef unsupported fill:#fde2e1\n")
	sb.WriteString("    classDef partial fill:#fff7d6\n")

	ids := newIDMap()
	byKind := make(map[component.Kind][]*graph.Node)
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if !m.include(n.Kind) {
			continue
		}
		byKind[n.Kind] = append(byKind[n.Kind], n)
	}

	var classes []string
	for _, kind := range orderedKinds(byKind) {
		sb.WriteString(fmt.Sprintf("    subgraph %s[\"%s\"]\n", sanitizeMermaidID("kind_"+string(kind)), kind))
		for _, n := range byKind[kind] {
			mid := ids.get(n.ID)
			sb.WriteString(fmt.Sprintf("        %s[\"%s\"]\n", mid, mermaidText(nodeLabel(n))))
			switch {
			case n.Placeholder:
				classes = append(classes, fmt.Sprintf("    class %s missing\n", mid))
			case n.Status == component.StatusUnsupported:
				classes = append(classes, fmt.Sprintf("    class %s unsupported\n", mid))
			case n.Status == component.StatusPartiallySupported:
				classes = append(classes, fmt.Sprintf("    class %s partial\n", mid))
			}
		}
		sb.WriteString("    end\n")
	}

	for _, e := range g.Edges {
		from, fromOK := g.Nodes[e.From]
		to, toOK := g.Nodes[e.To]
		if !fromOK || !toOK || !m.include(from.Kind) || !m.include(to.Kind) {
			continue
		}
		arrow := "-->"
		if e.Relation == graph.RelationDependsOn {
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s|%s| %s\n", ids.get(e.From), arrow, e.Relation, ids.get(e.To)))
	}
	for _, c := range classes {
		sb.WriteString(c)
	}
	sb.WriteString("```\n")
	return sb.String()
}

// GenerateDeploymentOrder draws one subgraph per level with invoke edges
// pointing from invoker to target.
func (m *MermaidGenerator) GenerateDeploymentOrder(plan *planner.Plan) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("graph BT\n")
	if plan == nil || len(plan.Order) == 0 {
		sb.WriteString("    empty[\"no pipelines\"]\n```\n")
		return sb.String()
	}

	ids := newIDMap()
	for level, names := range plan.Levels() {
		sb.WriteString(fmt.Sprintf("    subgraph level_%d[\"level %d\"]\n", level, level))
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("        %s[\"%s\"]\n", ids.get(name), mermaidText(name)))
		}
		sb.WriteString("    end\n")
	}
	for _, rec := range plan.Order {
		for _, target := range rec.DependsOnPipelines {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", ids.get(rec.Pipeline), ids.get(target)))
		}
	}
	sb.WriteString("```\n")
	return sb.String()
}

func (m *MermaidGenerator) include(kind component.Kind) bool {
	return len(m.Kinds) == 0 || m.Kinds[kind]
}

func nodeLabel(n *graph.Node) string {
	if n.SubType != "" && !n.Placeholder {
		return n.Label + "<br/>" + n.SubType
	}
	return n.Label
}

func mermaidText(v string) string {
	return strings.ReplaceAll(v, `"`, "#quot;")
}

func orderedKinds(byKind map[component.Kind][]*graph.Node) []component.Kind {
	var out []component.Kind
	known := make(map[component.Kind]bool, len(component.Kinds))
	for _, k := range component.Kinds {
		known[k] = true
		if len(byKind[k]) > 0 {
			out = append(out, k)
		}
	}
	var extra []component.Kind
	for k := range byKind {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// idMap hands out unique Mermaid ids; sanitizing alone can collide.
type idMap struct {
	byKey map[string]string
	used  map[string]bool
}

func newIDMap() *idMap {
	return &idMap{byKey: map[string]string{}, used: map[string]bool{}}
}

func (m *idMap) get(key string) string {
	if id, ok := m.byKey[key]; ok {
		return id
	}
	base := sanitizeMermaidID(key)
	id := base
	for i := 2; m.used[id]; i++ {
		id = fmt.Sprintf("%s_%d", base, i)
	}
	m.byKey[key] = id
	m.used[id] = true
	return id
}

func sanitizeMermaidID(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "node"
	}
	v = mermaidUnsafe.ReplaceAllString(strings.ReplaceAll(v, "-", "_"), "_")
	if v == "" {
		return "node"
	}
	if v[0] >= '0' && v[0] <= '9' {
		v = "n_" + v
	}
	return v
}
