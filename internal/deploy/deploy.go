// Package deploy hands transformed pipelines to a destination deployer in
// planned order and fills invoke targets from artifacts created earlier.
package deploy

import (
	"context"
	"fmt"
)

// Artifact is a pipeline created on the destination.
type Artifact struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
}

// Deployer creates one pipeline on the destination. Transport, auth and retry
// live behind this interface.
type Deployer interface {
	Deploy(ctx context.Context, def Definition) (Artifact, error)
}

// ArtifactIndex looks up pipelines deployed by earlier runs.
type ArtifactIndex interface {
	LookupArtifact(ctx context.Context, name string) (Artifact, bool, error)
}

// ArtifactRecorder persists created artifacts for later runs.
type ArtifactRecorder interface {
	RecordArtifact(ctx context.Context, a Artifact) error
}

// DeployError is a failed deployment of one pipeline.
type DeployError struct {
	Pipeline string
	Err      error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy pipeline %q: %v", e.Pipeline, e.Err)
}

func (e *DeployError) Unwrap() error { return e.Err }
