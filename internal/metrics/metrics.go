// Package metrics holds the Prometheus collectors of a migration run.
// Every method is safe on a nil *Collector so engine packages can record
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	Registry *prometheus.Registry

	componentsParsed      *prometheus.CounterVec
	resourcesSkipped      *prometheus.CounterVec
	activitiesTransformed *prometheus.CounterVec
	connectionResolutions *prometheus.CounterVec
	graphPlaceholders     prometheus.Counter
	pipelinesDeployed     *prometheus.CounterVec
	deploymentLevels      prometheus.Gauge
	stageDuration         *prometheus.HistogramVec
}

// New creates collectors registered on a fresh registry.
func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		componentsParsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorylift_components_parsed_total",
				Help: "Components produced by the schema normalizer.",
			},
			[]string{"kind", "status"},
		),
		resourcesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorylift_resources_skipped_total",
				Help: "Source resources skipped during parsing.",
			},
			[]string{"reason"},
		),
		activitiesTransformed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorylift_activities_transformed_total",
				Help: "Activities rewritten by the activity transformer.",
			},
			[]string{"type", "outcome"},
		),
		connectionResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorylift_connection_resolutions_total",
				Help: "Connection lookups by the tier that answered them.",
			},
			[]string{"tier"},
		),
		graphPlaceholders: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "factorylift_graph_placeholders_total",
				Help: "Placeholder nodes synthesized for dangling references.",
			},
		),
		pipelinesDeployed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorylift_pipelines_deployed_total",
				Help: "Pipelines handed to the deployer.",
			},
			[]string{"outcome"},
		),
		deploymentLevels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "factorylift_deployment_levels",
				Help: "Number of levels in the last computed deployment order.",
			},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factorylift_stage_duration_seconds",
				Help:    "Duration of migration stages.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
	c.Registry.MustRegister(
		c.componentsParsed,
		c.resourcesSkipped,
		c.activitiesTransformed,
		c.connectionResolutions,
		c.graphPlaceholders,
		c.pipelinesDeployed,
		c.deploymentLevels,
		c.stageDuration,
	)
	return c
}

func (c *Collector) ComponentParsed(kind, status string) {
	if c == nil {
		return
	}
	c.componentsParsed.WithLabelValues(kind, status).Inc()
}

func (c *Collector) ResourceSkipped(reason string) {
	if c == nil {
		return
	}
	c.resourcesSkipped.WithLabelValues(reason).Inc()
}

func (c *Collector) ActivityTransformed(activityType, outcome string) {
	if c == nil {
		return
	}
	c.activitiesTransformed.WithLabelValues(activityType, outcome).Inc()
}

func (c *Collector) ConnectionResolved(tier string) {
	if c == nil {
		return
	}
	c.connectionResolutions.WithLabelValues(tier).Inc()
}

func (c *Collector) PlaceholderAdded() {
	if c == nil {
		return
	}
	c.graphPlaceholders.Inc()
}

func (c *Collector) PipelineDeployed(outcome string) {
	if c == nil {
		return
	}
	c.pipelinesDeployed.WithLabelValues(outcome).Inc()
}

func (c *Collector) SetDeploymentLevels(n int) {
	if c == nil {
		return
	}
	c.deploymentLevels.Set(float64(n))
}

func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.Registry)
}
