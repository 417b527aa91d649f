package planner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorylift/internal/component"
	"factorylift/internal/graph"
	"factorylift/internal/transform"
)

func TestBuildPlan_InvokedPipelineDeploysFirst(t *testing.T) {
	plan, err := BuildPlan([]string{"P1", "P2"}, map[string][]string{"P1": {"P2"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"P2", "P1"}, plan.Names())
	p1, ok := plan.Record("P1")
	require.True(t, ok)
	p2, _ := plan.Record("P2")
	assert.Equal(t, 1, p1.Level)
	assert.Equal(t, 0, p2.Level)
	assert.Equal(t, []string{"P2"}, p1.DependsOnPipelines)
	assert.True(t, p2.IsReferencedByOthers)
	assert.False(t, p1.IsReferencedByOthers)
}

func TestBuildPlan_LevelsRespectEveryEdge(t *testing.T) {
	invokes := map[string][]string{
		"Main":    {"Load", "Notify", "Extract"},
		"Load":    {"Extract", "Cleanup"},
		"Extract": {"Cleanup"},
		"Report":  {"Load"},
	}
	pipelines := []string{"Main", "Load", "Extract", "Cleanup", "Notify", "Report", "Standalone"}

	plan, err := BuildPlan(pipelines, invokes)
	require.NoError(t, err)
	require.Len(t, plan.Order, len(pipelines))

	position := map[string]int{}
	for i, name := range plan.Names() {
		position[name] = i
	}
	for invoker, targets := range invokes {
		a, _ := plan.Record(invoker)
		for _, target := range targets {
			b, _ := plan.Record(target)
			assert.Less(t, b.Level, a.Level, "%s invokes %s", invoker, target)
			assert.Less(t, position[target], position[invoker])
		}
	}

	assert.Equal(t, [][]string{
		{"Cleanup", "Notify", "Standalone"},
		{"Extract"},
		{"Load"},
		{"Main", "Report"},
	}, plan.Levels())
}

func TestBuildPlan_ReferencedFirstWithinLevel(t *testing.T) {
	plan, err := BuildPlan([]string{"A", "Z", "Top"}, map[string][]string{"Top": {"Z"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Z", "A", "Top"}, plan.Names())
}

func TestBuildPlan_UnresolvedTargetsAreReported(t *testing.T) {
	plan, err := BuildPlan([]string{"P1"}, map[string][]string{"P1": {"Ghost", "Ghost"}})
	require.NoError(t, err)

	rec, _ := plan.Record("P1")
	assert.Equal(t, 0, rec.Level)
	assert.Equal(t, []string{"Ghost"}, rec.UnresolvedTargets)
	assert.Empty(t, rec.DependsOnPipelines)
	assert.Equal(t, map[string][]string{"P1": {"Ghost"}}, plan.Unresolved())
}

func TestBuildPlan_OnlyListedPipelinesArePlanned(t *testing.T) {
	plan, err := BuildPlan([]string{"P1", "P2"}, map[string][]string{
		"P1":     {"P2"},
		"Failed": {"P1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"P2", "P1"}, plan.Names())
	_, ok := plan.Record("Failed")
	assert.False(t, ok)

	p1, _ := plan.Record("P1")
	assert.False(t, p1.IsReferencedByOthers, "an unlisted invoker does not count as a reference")
}

func TestBuildPlan_CycleIsValidationError(t *testing.T) {
	tests := []struct {
		name    string
		invokes map[string][]string
		want    [][]string
	}{
		{"two pipelines", map[string][]string{"A": {"B"}, "B": {"A"}}, [][]string{{"A", "B", "A"}}},
		{"self invoke", map[string][]string{"A": {"A"}}, [][]string{{"A", "A"}}},
		{"three with tail", map[string][]string{"A": {"B"}, "B": {"C"}, "C": {"A"}, "D": {"A"}}, [][]string{{"A", "B", "C", "A"}}},
		{
			"two separate cycles",
			map[string][]string{"A": {"B"}, "B": {"A"}, "X": {"Y"}, "Y": {"X"}},
			[][]string{{"A", "B", "A"}, {"X", "Y", "X"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pipelines []string
			for name := range tt.invokes {
				pipelines = append(pipelines, name)
			}
			plan, err := BuildPlan(pipelines, tt.invokes)
			require.Error(t, err)
			assert.Nil(t, plan)
			assert.True(t, IsCycle(err))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			got := make([][]string, len(ve.Cycles))
			for i, c := range ve.Cycles {
				got[i] = c.Cycle
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGraph(t *testing.T) {
	p1 := &component.Component{Name: "P1", Kind: component.KindPipeline}
	p1.Implicit = []component.ImplicitDependency{
		{Kind: component.KindPipeline, Name: "P2", Activity: "Run"},
		{Kind: component.KindPipeline, Name: "Ghost", Activity: "RunGhost"},
		{Kind: component.KindDataset, Name: "DS1", Activity: "Copy"},
	}
	p2 := &component.Component{Name: "P2", Kind: component.KindPipeline}

	pipelines, invokes := FromGraph(graph.Build([]*component.Component{p1, p2}))
	assert.Equal(t, []string{"P1", "P2"}, pipelines)
	assert.ElementsMatch(t, []string{"P2", "Ghost"}, invokes["P1"])

	plan, err := BuildPlan(pipelines, invokes)
	require.NoError(t, err)
	assert.Equal(t, []string{"P2", "P1"}, plan.Names())
	assert.Equal(t, map[string][]string{"P1": {"Ghost"}}, plan.Unresolved())
}

func TestFromTransformed(t *testing.T) {
	pipes := []*transform.Pipeline{
		{Name: "Parent", Pending: []*transform.PendingReference{{Activity: "Run", IntendedTarget: "Child"}}},
		{Name: "Child"},
	}
	pipelines, invokes := FromTransformed(pipes)
	assert.Equal(t, []string{"Parent", "Child"}, pipelines)
	assert.Equal(t, map[string][]string{"Parent": {"Child"}}, invokes)
}
