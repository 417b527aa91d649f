package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// namespace seeds every dry-run id so repeated runs produce the same ids.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("factorylift/dry-run"))

// DryRunDeployer writes each definition to Dir instead of calling the
// destination, and answers with ids derived from the workspace and pipeline name.
type DryRunDeployer struct {
	Dir         string
	WorkspaceID string
}

func NewDryRunDeployer(dir, workspace string) *DryRunDeployer {
	if workspace == "" {
		workspace = "dry-run"
	}
	return &DryRunDeployer{
		Dir:         dir,
		WorkspaceID: uuid.NewSHA1(namespace, []byte("workspace/"+workspace)).String(),
	}
}

// ArtifactID is the id the dry run assigns to a pipeline.
func (d *DryRunDeployer) ArtifactID(name string) string {
	return uuid.NewSHA1(namespace, []byte(d.WorkspaceID+"/pipeline/"+name)).String()
}

func (d *DryRunDeployer) Deploy(ctx context.Context, def Definition) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	if def.Name == "" {
		return Artifact{}, fmt.Errorf("dry run: pipeline has no name")
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("dry run: create output dir: %w", err)
	}
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("dry run: encode %q: %w", def.Name, err)
	}
	path := filepath.Join(d.Dir, fileName(def.Name)+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("dry run: write %q: %w", def.Name, err)
	}
	return Artifact{Name: def.Name, ID: d.ArtifactID(def.Name), WorkspaceID: d.WorkspaceID}, nil
}

func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// LoadArtifactReport reads created artifacts reported by an external
// deployment run: either {"artifacts": [...]} or a bare array.
func LoadArtifactReport(path string) ([]Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact report: %w", err)
	}
	var wrapped struct {
		Artifacts []Artifact `json:"artifacts"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Artifacts != nil {
		return wrapped.Artifacts, nil
	}
	var list []Artifact
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode artifact report: %w", err)
	}
	return list, nil
}

// StaticLookup answers lookups from a fixed artifact list.
func StaticLookup(artifacts []Artifact) Lookup {
	byName := make(map[string]Artifact, len(artifacts))
	for _, a := range artifacts {
		byName[a.Name] = a
	}
	return func(_ context.Context, name string) (Artifact, bool, error) {
		a, ok := byName[name]
		return a, ok, nil
	}
}
