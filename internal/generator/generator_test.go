package generator

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"factorylift/internal/component"
	"factorylift/internal/graph"
	"factorylift/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *graph.Graph {
	return graph.Build([]*component.Component{
		{Name: "P1", Kind: component.KindPipeline, Status: component.StatusPartiallySupported,
			Implicit: []component.ImplicitDependency{{Kind: component.KindDataset, Name: "DS1"}, {Kind: component.KindPipeline, Name: "P2"}}},
		{Name: "P2", Kind: component.KindPipeline, Status: component.StatusSupported},
		{Name: "Legacy", Kind: component.KindLinkedService, SubType: "Hive", Status: component.StatusUnsupported},
	})
}

func TestGenerateArtifactGraph(t *testing.T) {
	out := (&MermaidGenerator{}).GenerateArtifactGraph(sampleGraph())

	assert.True(t, strings.HasPrefix(out, "```mermaid\ngraph LR\n"))
	assert.Contains(t, out, `subgraph kind_pipeline["pipeline"]`)
	assert.Contains(t, out, `dataset_ds1["DS1 (referenced but not found)"]`)
	assert.Contains(t, out, `linkedservice_legacy["Legacy<br/>Hive"]`)
	assert.Contains(t, out, "pipeline_p1 -->|uses| dataset_ds1")
	assert.Contains(t, out, "pipeline_p1 -->|executes| pipeline_p2")
	assert.Contains(t, out, "class dataset_ds1 missing")
	assert.Contains(t, out, "class linkedservice_legacy unsupported")
	assert.Contains(t, out, "class pipeline_p1 partial")

	// Pipelines render before datasets.
	assert.Less(t, strings.Index(out, "kind_pipeline"), strings.Index(out, "kind_dataset"))
}

func TestGenerateArtifactGraph_KindFilter(t *testing.T) {
	m := &MermaidGenerator{Kinds: map[component.Kind]bool{component.KindPipeline: true}}
	out := m.GenerateArtifactGraph(sampleGraph())

	assert.NotContains(t, out, "dataset_ds1")
	assert.Contains(t, out, "pipeline_p1 -->|executes| pipeline_p2")
}

func TestGenerateDeploymentOrder(t *testing.T) {
	plan, err := planner.BuildPlan([]string{"P1", "P2"}, map[string][]string{"P1": {"P2"}})
	require.NoError(t, err)

	out := (&MermaidGenerator{}).GenerateDeploymentOrder(plan)
	assert.Contains(t, out, `subgraph level_0["level 0"]`)
	assert.Contains(t, out, `p2["P2"]`)
	assert.Contains(t, out, "p1 --> p2")

	assert.Contains(t, (&MermaidGenerator{}).GenerateDeploymentOrder(nil), "no pipelines")
}

func TestSanitizeMermaidID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"pipeline:Copy-Data", "pipeline_copy_data"},
		{"9lives", "n_9lives"},
		{"  ", "node"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeMermaidID(tt.in))
		})
	}
}

func TestIDMap_AvoidsCollisions(t *testing.T) {
	ids := newIDMap()
	assert.Equal(t, "a_b", ids.get("a:b"))
	assert.Equal(t, "a_b_2", ids.get("a-b"))
	assert.Equal(t, "a_b", ids.get("a:b"))
}

func TestMigrationReport_TimestampsOnlyInMetadata(t *testing.T) {
	tick := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	newReport := func() *MigrationReport {
		r := NewMigrationReport("migrate", "export.json", "out")
		r.now = func() time.Time {
			tick = tick.Add(1500 * time.Millisecond)
			return tick
		}
		return r
	}

	build := func() *MigrationReport {
		r := newReport()
		h := r.BeginStage("parse")
		assert.Equal(t, 1500*time.Millisecond, r.EndStage(h, "", map[string]float64{"components": 3, " ": 1}, []string{" ", "ok"}, nil))
		h = r.BeginStage("transform")
		r.EndStage(h, "", nil, nil, errors.New("boom"))
		r.AddSignal("placeholder", "graph", "Warning", "dataset:DS1", "referenced but not found", 0)
		r.AddSignal("cycle", "order", "critical", "", "A -> B -> A", 0)
		r.AddSignal("", "graph", "info", "", "dropped", 0)
		r.Finalize()
		return r
	}

	first, second := build(), build()
	require.Len(t, first.Stages, 2)
	assert.Equal(t, map[string]float64{"components": 3}, first.Stages[0].Counters)
	assert.Equal(t, []string{"ok"}, first.Stages[0].Notes)
	assert.Equal(t, "error", first.Stages[1].Status)
	assert.Equal(t, 1, first.Summary.FailedStages)
	assert.Equal(t, "cycle", first.Signals[0].Code)
	assert.Equal(t, 1, first.Summary.SignalsBySeverity["warning"])
	require.Len(t, first.Metadata.Stages, 2)
	assert.Equal(t, int64(1500), first.Metadata.Stages[0].DurationMS)

	body := func(r *MigrationReport) string {
		cp := *r
		cp.Metadata = ReportMetadata{}
		data, err := json.Marshal(cp)
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, body(first), body(second))
	assert.NotEqual(t, first.Metadata.GeneratedAt, second.Metadata.GeneratedAt)
}

func TestMigrationReport_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	r := NewMigrationReport("parse", "src", "out")
	r.Summary.Pipelines = 4
	require.NoError(t, r.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "metadata")
	assert.Equal(t, float64(4), decoded["summary"].(map[string]any)["pipelines"])
}
