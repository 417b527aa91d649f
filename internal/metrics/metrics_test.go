package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := New()
	c.ComponentParsed("pipeline", "supported")
	c.ComponentParsed("pipeline", "supported")
	c.ResourceSkipped("unrecognized_type")
	c.ConnectionResolved("reference_id")
	c.PlaceholderAdded()
	c.SetDeploymentLevels(3)
	c.ObserveStage("parse", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.componentsParsed.WithLabelValues("pipeline", "supported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resourcesSkipped.WithLabelValues("unrecognized_type")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionResolutions.WithLabelValues("reference_id")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.graphPlaceholders))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.deploymentLevels))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.ComponentParsed("pipeline", "supported")
	c.ActivityTransformed("Copy", "ok")
	assert.NoError(t, c.WriteTextfile("ignored"))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := New()
	c.PipelineDeployed("created")
	path := filepath.Join(t.TempDir(), "factorylift.prom")

	require.NoError(t, c.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `factorylift_pipelines_deployed_total{outcome="created"} 1`)
}
