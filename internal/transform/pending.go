package transform

import (
	"strings"

	"factorylift/internal/activity"
	"factorylift/internal/probe"
)

// PendingReference is an invoke-pipeline target that is only known by name
// until the target has been deployed.
type PendingReference struct {
	// Activity is the activity path inside the pipeline, e.g. "Loop/RunChild".
	Activity       string          `json:"activity"`
	IntendedTarget string          `json:"intendedTarget"`
	Resolved       *ResolvedTarget `json:"resolved,omitempty"`
}

// ResolvedTarget holds the destination identifiers of a deployed pipeline.
type ResolvedTarget struct {
	PipelineID  string `json:"pipelineId"`
	WorkspaceID string `json:"workspaceId"`
}

// IsResolved reports whether the destination ids are known.
func (p *PendingReference) IsResolved() bool {
	return p != nil && p.Resolved != nil && p.Resolved.PipelineID != ""
}

// Resolve records the destination ids and writes them into the invoke activity.
// It reports whether the activity was found.
func (p *Pipeline) Resolve(ref *PendingReference, target ResolvedTarget) bool {
	act := p.FindActivity(ref.Activity)
	if act == nil {
		return false
	}
	tp := probe.Map(act, "typeProperties")
	if tp == nil {
		tp = map[string]any{}
		act["typeProperties"] = tp
	}
	tp["pipelineId"] = target.PipelineID
	tp["workspaceId"] = target.WorkspaceID
	ref.Resolved = &target
	return true
}

// LeaveInert deactivates the invoke activity of an unresolvable reference.
func (p *Pipeline) LeaveInert(ref *PendingReference, reason string) bool {
	act := p.FindActivity(ref.Activity)
	if act == nil {
		return false
	}
	deactivate(act)
	p.AddWarning("activity %q in pipeline %q left inactive: invoked pipeline %q %s; deploy it and re-run invoke resolution",
		ref.Activity, p.Name, ref.IntendedTarget, reason)
	return true
}

// Unresolved returns pending references without destination ids.
func (p *Pipeline) Unresolved() []*PendingReference {
	var out []*PendingReference
	for _, ref := range p.Pending {
		if !ref.IsResolved() {
			out = append(out, ref)
		}
	}
	return out
}

// FindActivity returns the transformed activity at a slash-separated path.
func (p *Pipeline) FindActivity(path string) map[string]any {
	if path == "" {
		return nil
	}
	var found map[string]any
	activity.Visit(p.Properties.Activities, func(segs []string, act map[string]any) {
		if found == nil && strings.Join(segs, "/") == path {
			found = act
		}
	})
	return found
}
