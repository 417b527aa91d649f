package retrieval

import (
	"testing"

	"factorylift/internal/component"
	"factorylift/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainGraph() *graph.Graph {
	g := graph.NewGraph()
	for _, name := range []string{"A", "B", "C"} {
		g.AddComponent(&component.Component{Name: name, Kind: component.KindPipeline})
	}
	g.AddComponent(&component.Component{Name: "DS", Kind: component.KindDataset})
	g.AddEdge(graph.Edge{From: "pipeline:A", To: "pipeline:B", Relation: graph.RelationExecutes})
	g.AddEdge(graph.Edge{From: "pipeline:B", To: "pipeline:C", Relation: graph.RelationExecutes})
	g.AddEdge(graph.Edge{From: "pipeline:A", To: "dataset:DS", Relation: graph.RelationUses})
	return g
}

func TestExtract_BasicHopTraversal(t *testing.T) {
	sg := Extract(chainGraph(), []string{"pipeline:A"}, Config{MaxHops: 1})

	assert.Equal(t, []string{"pipeline:A"}, sg.SeedIDs)
	assert.Equal(t, []string{"dataset:DS", "pipeline:A", "pipeline:B"}, sg.NodeIDs)
	assert.Len(t, sg.Edges, 2)
	assert.Equal(t, 1, sg.Depth["pipeline:B"])
	assert.Empty(t, sg.Missing)
}

func TestExtract_WalksBothDirections(t *testing.T) {
	sg := Extract(chainGraph(), []string{"pipeline:C"}, Config{MaxHops: 2})

	assert.Equal(t, []string{"pipeline:A", "pipeline:B", "pipeline:C"}, sg.NodeIDs)
	assert.Equal(t, 2, sg.Depth["pipeline:A"])
}

func TestExtract_FiltersByRelationKind(t *testing.T) {
	sg := Extract(chainGraph(), []string{"pipeline:A"}, Config{
		MaxHops: 3,
		AllowedKinds: map[graph.RelationKind]bool{
			graph.RelationUses: true,
		},
	})

	assert.Equal(t, []string{"dataset:DS", "pipeline:A"}, sg.NodeIDs)
	require.Len(t, sg.Edges, 1)
	assert.Equal(t, graph.RelationUses, sg.Edges[0].Relation)
}

func TestExtract_ZeroHopsAndMissingSeeds(t *testing.T) {
	sg := Extract(chainGraph(), []string{"pipeline:B", "pipeline:Nope"}, Config{MaxHops: 0})

	assert.Equal(t, []string{"pipeline:B"}, sg.NodeIDs)
	assert.Empty(t, sg.Edges)
	assert.Equal(t, []string{"pipeline:Nope"}, sg.Missing)

	sg = Extract(chainGraph(), []string{"pipeline:Nope"}, DefaultConfig())
	assert.Empty(t, sg.NodeIDs)
	assert.Equal(t, []string{"pipeline:Nope"}, sg.Missing)
}

func TestExtract_SkipPlaceholders(t *testing.T) {
	g := graph.Build([]*component.Component{
		{Name: "P1", Kind: component.KindPipeline, Implicit: []component.ImplicitDependency{{Kind: component.KindDataset, Name: "Ghost"}}},
		{Name: "P2", Kind: component.KindPipeline, Implicit: []component.ImplicitDependency{{Kind: component.KindDataset, Name: "Ghost"}}},
	})

	sg := Extract(g, []string{"pipeline:P1"}, Config{MaxHops: 2, SkipPlaceholders: true})
	assert.Equal(t, []string{"dataset:Ghost", "pipeline:P1"}, sg.NodeIDs)

	sg = Extract(g, []string{"pipeline:P1"}, Config{MaxHops: 2})
	assert.Equal(t, []string{"dataset:Ghost", "pipeline:P1", "pipeline:P2"}, sg.NodeIDs)

	sub := sg.Graph(g)
	assert.Len(t, sub.Nodes, 3)
	assert.NoError(t, sub.Validate())
}
