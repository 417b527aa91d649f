package storage

import (
	"context"

	"factorylift/internal/component"
	"factorylift/internal/deploy"
	"factorylift/internal/graph"
	"factorylift/internal/planner"
	"factorylift/internal/transform"
)

// Store persists every stage output of a migration run.
type Store interface {
	ComponentStore
	GraphStore
	MigrationStore
	Close() error
}

// ComponentStore persists parsed components.
type ComponentStore interface {
	// SaveComponents replaces the stored component set.
	SaveComponents(ctx context.Context, comps []*component.Component) error

	// LoadComponents returns components in the order they were saved.
	LoadComponents(ctx context.Context) ([]*component.Component, error)

	// Fingerprints maps component id to the fingerprint stored with it.
	Fingerprints(ctx context.Context) (map[string]string, error)
}

// GraphStore persists the artifact graph as a snapshot.
type GraphStore interface {
	SaveGraph(ctx context.Context, g *graph.Graph) error
	LoadGraph(ctx context.Context) (*graph.Graph, error)
	GetNode(ctx context.Context, id string) (*graph.Node, error)
	FindNodesByKind(ctx context.Context, kind component.Kind) ([]*graph.Node, error)
}

// MigrationStore persists transformed pipelines, the deployment order and
// created artifacts.
type MigrationStore interface {
	SavePipelines(ctx context.Context, pipes []*transform.Pipeline) error
	LoadPipelines(ctx context.Context) ([]*transform.Pipeline, error)
	SaveFailures(ctx context.Context, failures map[string]string) error
	LoadFailures(ctx context.Context) (map[string]string, error)

	SavePlan(ctx context.Context, plan *planner.Plan) error
	LoadPlan(ctx context.Context) (*planner.Plan, error)

	deploy.ArtifactIndex
	deploy.ArtifactRecorder
	Artifacts(ctx context.Context) ([]deploy.Artifact, error)
}
