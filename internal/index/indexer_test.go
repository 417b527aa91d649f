package index

import (
	"os"
	"path/filepath"
	"testing"

	"factorylift/internal/component"
	"factorylift/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportDoc = `{
  "resources": [
    {
      "type": "Microsoft.DataFactory/factories/pipelines",
      "name": "[concat(parameters('factoryName'), '/P1')]",
      "properties": {
        "activities": [
          {
            "name": "Copy",
            "type": "Copy",
            "inputs": [{"referenceName": "DS1", "type": "DatasetReference"}],
            "outputs": [{"referenceName": "DS2", "type": "DatasetReference"}]
          },
          {
            "name": "RunChild",
            "type": "ExecutePipeline",
            "typeProperties": {"pipeline": {"referenceName": "P2", "type": "PipelineReference"}}
          }
        ]
      }
    },
    {
      "type": "Microsoft.DataFactory/factories/pipelines",
      "name": "P2",
      "properties": {"activities": [{"name": "Pause", "type": "Wait"}]}
    },
    {
      "type": "Microsoft.DataFactory/factories/datasets",
      "name": "DS1",
      "properties": {
        "type": "DelimitedText",
        "linkedServiceName": {"referenceName": "LS1", "type": "LinkedServiceReference"}
      }
    },
    {
      "type": "Microsoft.DataFactory/factories/linkedServices",
      "name": "LS1",
      "properties": {"type": "AzureBlobStorage"}
    }
  ]
}`

func TestBuildGraph_FromDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(exportDoc), 0o644))

	snap, err := NewIndexer(nil, nil).BuildGraph(path)
	require.NoError(t, err)

	assert.True(t, snap.Catalog.Frozen())
	assert.Len(t, snap.Components, 4)

	g := snap.Graph
	require.NoError(t, g.Validate())
	ghost := g.Nodes["dataset:DS2"]
	require.NotNil(t, ghost)
	assert.True(t, ghost.Placeholder)

	assert.Len(t, g.EdgesOf(graph.RelationExecutes), 1)
	deps := g.GetDependencies("dataset:DS1")
	require.Len(t, deps, 1)
	assert.Equal(t, "linkedService:LS1", deps[0].ID)
}

func TestBuildGraph_MissingSource(t *testing.T) {
	_, err := NewIndexer(nil, nil).BuildGraph(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestRebuild_MatchesParsedGraph(t *testing.T) {
	idx := NewIndexer(nil, nil)
	snap, err := idx.BuildFromDocument([]byte(exportDoc), "export.json")
	require.NoError(t, err)

	again, err := idx.Rebuild(snap.Components)
	require.NoError(t, err)
	assert.Equal(t, snap.Graph.Edges, again.Graph.Edges)
	assert.Equal(t, snap.Graph.NodeIDs(), again.Graph.NodeIDs())

	_, ok := again.Catalog.Get(component.KindPipeline, "P1")
	assert.True(t, ok)
}

func TestSaveLoadGraph(t *testing.T) {
	idx := NewIndexer(nil, nil)
	snap, err := idx.BuildFromDocument([]byte(exportDoc), "export.json")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, idx.SaveGraph(snap.Graph, path))

	loaded, err := idx.LoadGraph(path)
	require.NoError(t, err)
	assert.Equal(t, snap.Graph.NodeIDs(), loaded.NodeIDs())
	assert.Equal(t, snap.Graph.Edges, loaded.Edges)
	assert.Equal(t, []string{"pipeline:P2"}, loaded.Lookup("P2"))
}
