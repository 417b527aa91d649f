// Package planner orders pipelines for deployment so every invoked pipeline
// exists before the pipelines that invoke it.
package planner

import (
	"sort"
)

// Record is the deployment position of one pipeline.
type Record struct {
	Pipeline string `json:"pipeline"`
	// Level is 0 for pipelines that invoke nothing resolvable, otherwise one
	// more than the highest level among the pipelines they invoke.
	Level                int      `json:"level"`
	DependsOnPipelines   []string `json:"dependsOnPipelines"`
	IsReferencedByOthers bool     `json:"isReferencedByOthers"`
	// UnresolvedTargets are invoked names with no matching pipeline.
	UnresolvedTargets []string `json:"unresolvedTargets,omitempty"`
}

// Plan is the resolved deployment order.
type Plan struct {
	Order []Record `json:"order"`
	// Iterations is the number of relaxation passes until levels settled.
	Iterations int `json:"iterations"`

	byName map[string]int
}

// Names returns pipeline names in deployment order.
func (p *Plan) Names() []string {
	out := make([]string, len(p.Order))
	for i, r := range p.Order {
		out[i] = r.Pipeline
	}
	return out
}

// Record returns the record of one pipeline.
func (p *Plan) Record(name string) (Record, bool) {
	if p.byName == nil {
		p.index()
	}
	i, ok := p.byName[name]
	if !ok {
		return Record{}, false
	}
	return p.Order[i], true
}

// Levels groups pipeline names by level, lowest first.
func (p *Plan) Levels() [][]string {
	var out [][]string
	for _, r := range p.Order {
		for len(out) <= r.Level {
			out = append(out, nil)
		}
		out[r.Level] = append(out[r.Level], r.Pipeline)
	}
	return out
}

// Unresolved maps each pipeline to the invoked names that matched no pipeline.
func (p *Plan) Unresolved() map[string][]string {
	out := make(map[string][]string)
	for _, r := range p.Order {
		if len(r.UnresolvedTargets) > 0 {
			out[r.Pipeline] = r.UnresolvedTargets
		}
	}
	return out
}

func (p *Plan) index() {
	p.byName = make(map[string]int, len(p.Order))
	for i, r := range p.Order {
		p.byName[r.Pipeline] = i
	}
}

// BuildPlan computes levels for pipelines given invokes (pipeline -> invoked
// names). Only listed pipelines are planned: invokes entries for other
// invokers are ignored, and invoked names that are not listed are reported
// per record without affecting levels. Invoke cycles, including
// self-invocation, yield a *ValidationError and no plan.
func BuildPlan(pipelines []string, invokes map[string][]string) (*Plan, error) {
	known := toSet(pipelines)
	names := sortedSetKeys(known)

	deps := make(map[string][]string, len(names))
	unresolved := make(map[string][]string)
	referenced := make(map[string]bool)
	for _, name := range names {
		targets := toSet(invokes[name])
		for _, target := range sortedSetKeys(targets) {
			if !known[target] {
				unresolved[name] = append(unresolved[name], target)
				continue
			}
			deps[name] = append(deps[name], target)
			referenced[target] = true
		}
	}

	if cycles := findCycles(names, deps); len(cycles) > 0 {
		return nil, &ValidationError{Cycles: cycles}
	}

	level := make(map[string]int, len(names))
	iterations := 0
	for changed := true; changed; {
		changed = false
		iterations++
		for _, name := range names {
			for _, dep := range deps[name] {
				if level[dep]+1 > level[name] {
					level[name] = level[dep] + 1
					changed = true
				}
			}
		}
	}

	plan := &Plan{Order: make([]Record, 0, len(names)), Iterations: iterations}
	for _, name := range names {
		dependsOn := deps[name]
		if dependsOn == nil {
			dependsOn = []string{}
		}
		plan.Order = append(plan.Order, Record{
			Pipeline:             name,
			Level:                level[name],
			DependsOnPipelines:   dependsOn,
			IsReferencedByOthers: referenced[name],
			UnresolvedTargets:    unresolved[name],
		})
	}
	sort.SliceStable(plan.Order, func(i, j int) bool {
		a, b := plan.Order[i], plan.Order[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.IsReferencedByOthers != b.IsReferencedByOthers {
			return a.IsReferencedByOthers
		}
		return a.Pipeline < b.Pipeline
	})
	plan.index()
	return plan, nil
}

// findCycles returns one concrete cycle per strongly connected component that
// contains a cycle, ordered by the component's smallest member.
func findCycles(names []string, deps map[string][]string) []*CycleError {
	var (
		index   = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		next    int
		out     []*CycleError
	)

	var strongConnect func(v string)
	strongConnect = func(v string) {
		index[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps[v] {
			if _, seen := index[w]; !seen {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], index[w])
			}
		}

		if lowlink[v] != index[v] {
			return
		}
		var members []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			members = append(members, w)
			if w == v {
				break
			}
		}
		if len(members) > 1 || selfLoop(v, deps) {
			out = append(out, &CycleError{Cycle: cyclePath(members, deps)})
		}
	}

	for _, v := range names {
		if _, seen := index[v]; !seen {
			strongConnect(v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cycle[0] < out[j].Cycle[0] })
	return out
}

func selfLoop(v string, deps map[string][]string) bool {
	for _, d := range deps[v] {
		if d == v {
			return true
		}
	}
	return false
}

// cyclePath walks from the smallest member back to itself inside the component.
func cyclePath(members []string, deps map[string][]string) []string {
	sort.Strings(members)
	start := members[0]
	in := toSet(members)
	visited := make(map[string]bool)

	var path []string
	var walk func(v string) bool
	walk = func(v string) bool {
		path = append(path, v)
		for _, w := range deps[v] {
			if w == start {
				path = append(path, start)
				return true
			}
			if in[w] && !visited[w] {
				visited[w] = true
				if walk(w) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		return false
	}
	visited[start] = true
	if walk(start) {
		return path
	}
	return append(members, start)
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		out[v] = true
	}
	return out
}

func sortedSetKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
