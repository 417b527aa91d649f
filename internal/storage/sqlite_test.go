package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"factorylift/internal/component"
	"factorylift/internal/deploy"
	"factorylift/internal/extractor"
	"factorylift/internal/graph"
	"factorylift/internal/planner"
	"factorylift/internal/transform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testComponent(kind component.Kind, name string, implicit ...component.ImplicitDependency) *component.Component {
	return &component.Component{
		Name:       name,
		Kind:       kind,
		Dialect:    component.DialectDataFactory,
		Status:     component.StatusSupported,
		Definition: map[string]any{"type": "Test", "name": name},
		Implicit:   implicit,
	}
}

func TestSQLiteStore_SaveGraph_SnapshotSync(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	// Initial snapshot: P1 uses DS1.
	p1 := testComponent(component.KindPipeline, "P1", component.ImplicitDependency{Kind: component.KindDataset, Name: "DS1", Location: "activities/Copy/inputs/0"})
	ds1 := testComponent(component.KindDataset, "DS1")
	require.NoError(t, store.SaveGraph(ctx, graph.Build([]*component.Component{p1, ds1})))

	// New snapshot: P1 removed, P2 uses a dataset that does not exist.
	p2 := testComponent(component.KindPipeline, "P2", component.ImplicitDependency{Kind: component.KindDataset, Name: "Ghost"})
	require.NoError(t, store.SaveGraph(ctx, graph.Build([]*component.Component{p2, ds1})))

	loaded, err := store.LoadGraph(ctx)
	require.NoError(t, err)

	assert.Len(t, loaded.Nodes, 3)
	_, hasP1 := loaded.Nodes["pipeline:P1"]
	assert.False(t, hasP1)

	ghost := loaded.Nodes["dataset:Ghost"]
	require.NotNil(t, ghost)
	assert.True(t, ghost.Placeholder)
	assert.Equal(t, "Ghost (referenced but not found)", ghost.Label)

	require.Len(t, loaded.Edges, 1)
	assert.Equal(t, graph.Edge{From: "pipeline:P2", To: "dataset:Ghost", Relation: graph.RelationUses}, loaded.Edges[0])

	require.Len(t, loaded.Gaps, 1)
	assert.Equal(t, graph.ReasonNotFound, loaded.Gaps[0].Reason)
	assert.Equal(t, component.KindDataset, loaded.Gaps[0].TargetKind)

	// Indexes work on the decoded graph.
	assert.Equal(t, []string{"dataset:DS1"}, loaded.Lookup("DS1"))
	assert.Len(t, loaded.GetDependents("dataset:Ghost"), 1)
	assert.NoError(t, loaded.Validate())
}

func TestSQLiteStore_SaveGraph_EmptySnapshotClearsData(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	p1 := testComponent(component.KindPipeline, "P1", component.ImplicitDependency{Kind: component.KindDataset, Name: "DS1"})
	require.NoError(t, store.SaveGraph(ctx, graph.Build([]*component.Component{p1})))
	require.NoError(t, store.SaveGraph(ctx, graph.NewGraph()))

	loaded, err := store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Nodes)
	assert.Empty(t, loaded.Edges)
	assert.Empty(t, loaded.Gaps)
}

func TestSQLiteStore_GetNodeAndFindByKind(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	comps := []*component.Component{
		testComponent(component.KindPipeline, "P1"),
		testComponent(component.KindPipeline, "P2"),
		testComponent(component.KindLinkedService, "LS1"),
	}
	require.NoError(t, store.SaveGraph(ctx, graph.Build(comps)))

	n, err := store.GetNode(ctx, "linkedService:LS1")
	require.NoError(t, err)
	assert.Equal(t, "LS1", n.Name)
	assert.Equal(t, component.StatusSupported, n.Status)

	_, err = store.GetNode(ctx, "linkedService:Nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	pipes, err := store.FindNodesByKind(ctx, component.KindPipeline)
	require.NoError(t, err)
	require.Len(t, pipes, 2)
	assert.Equal(t, "pipeline:P1", pipes[0].ID)
	assert.Equal(t, "pipeline:P2", pipes[1].ID)
}

func TestSQLiteStore_ComponentsRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first := testComponent(component.KindPipeline, "Zeta")
	first.Pipeline = &component.PipelineBody{Activities: []map[string]any{{"name": "Wait1", "type": "Wait"}}}
	second := testComponent(component.KindDataset, "Alpha")
	require.NoError(t, store.SaveComponents(ctx, []*component.Component{first, second}))

	loaded, err := store.LoadComponents(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "Zeta", loaded[0].Name, "save order is kept")
	assert.Equal(t, "Wait1", loaded[0].Pipeline.Activities[0]["name"])

	fps, err := store.Fingerprints(ctx)
	require.NoError(t, err)
	assert.Equal(t, extractor.Fingerprint(second), fps["dataset:Alpha"])

	require.NoError(t, store.SaveComponents(ctx, []*component.Component{second}))
	loaded, err = store.LoadComponents(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestSQLiteStore_PipelinesAndFailures(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	p := &transform.Pipeline{Name: "Parent", Pending: []*transform.PendingReference{{Activity: "Run", IntendedTarget: "Child"}}}
	p.Properties.Activities = []map[string]any{{"name": "Run", "type": "InvokePipeline"}}
	require.NoError(t, store.SavePipelines(ctx, []*transform.Pipeline{p}))

	p.Warnings = []string{"second pass"}
	require.NoError(t, store.SavePipelines(ctx, []*transform.Pipeline{p}))

	loaded, err := store.LoadPipelines(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Child", loaded[0].Pending[0].IntendedTarget)
	assert.Equal(t, []string{"second pass"}, loaded[0].Warnings)

	require.NoError(t, store.SaveFailures(ctx, map[string]string{"Broken": "missing sink"}))
	failures, err := store.LoadFailures(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Broken": "missing sink"}, failures)
}

func TestSQLiteStore_PlanRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	plan, err := planner.BuildPlan([]string{"P1", "P2"}, map[string][]string{"P1": {"P2", "Ghost"}})
	require.NoError(t, err)
	require.NoError(t, store.SavePlan(ctx, plan))

	loaded, err := store.LoadPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"P2", "P1"}, loaded.Names())
	rec, ok := loaded.Record("P1")
	require.True(t, ok)
	assert.Equal(t, []string{"Ghost"}, rec.UnresolvedTargets)
}

func TestSQLiteStore_Artifacts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, ok, err := store.LookupArtifact(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.RecordArtifact(ctx, deploy.Artifact{Name: "P1", ID: "a", WorkspaceID: "w"}))
	require.NoError(t, store.RecordArtifact(ctx, deploy.Artifact{Name: "P1", ID: "b", WorkspaceID: "w"}))

	got, ok, err := store.LookupArtifact(ctx, "P1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)

	all, err := store.Artifacts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
