package dependency

import (
	"factorylift/internal/activity"
	"factorylift/internal/component"
	"factorylift/internal/walker"
)

// referenceKinds maps reference object types to the component kind they name.
var referenceKinds = map[string]component.Kind{
	"DatasetReference":            component.KindDataset,
	"LinkedServiceReference":      component.KindLinkedService,
	"PipelineReference":           component.KindPipeline,
	"DataFlowReference":           component.KindDataflow,
	"IntegrationRuntimeReference": component.KindIntegrationRuntime,
	"CredentialReference":         component.KindManagedIdentity,
	"TriggerReference":            component.KindTrigger,
}

// childActivityKeys hold nested activities, which are scanned as activities
// of their own rather than as part of the parent body.
var childActivityKeys = []string{"activities", "ifTrueActivities", "ifFalseActivities", "defaultActivities"}

// Implicit discovers references inside the component's own body.
func Implicit(c *component.Component) []component.ImplicitDependency {
	out := []component.ImplicitDependency{}
	if c == nil {
		return out
	}
	if c.Kind == component.KindPipeline && c.Pipeline != nil {
		activity.Visit(c.Pipeline.Activities, func(path []string, act map[string]any) {
			name := activity.JoinPath(path)
			for _, d := range activityReferences(act) {
				d.Activity = name
				d.Location = "activities/" + name + "/" + d.Location
				out = append(out, d)
			}
		})
		return out
	}
	for _, d := range bodyReferences(c.Definition) {
		if d.Kind == c.Kind && d.Name == c.Name {
			continue
		}
		out = append(out, d)
	}
	return out
}

// activityReferences lists references owned by one activity, excluding its
// child activities. The same linked service may appear under several fields
// (linkedServiceName, typeProperties.*LinkedService, referenceObjects arrays).
func activityReferences(act map[string]any) []component.ImplicitDependency {
	return collect(act, walker.SkipKeys(childActivityKeys...))
}

func bodyReferences(body map[string]any) []component.ImplicitDependency {
	return collect(body)
}

func collect(root map[string]any, opts ...walker.Option) []component.ImplicitDependency {
	var out []component.ImplicitDependency
	for _, f := range walker.References(root, opts...) {
		kind, ok := referenceKinds[f.Value.Type]
		if !ok {
			continue
		}
		out = append(out, component.ImplicitDependency{Kind: kind, Name: f.Value.Name, Location: f.Path})
	}
	// Pre-v2 documents name linked services with a bare string.
	walker.Walk(root, func(path walker.Path, node any) bool {
		obj, ok := node.(map[string]any)
		if !ok {
			return true
		}
		if name, ok := obj["linkedServiceName"].(string); ok && name != "" {
			loc := "linkedServiceName"
			if p := path.String(); p != "" {
				loc = p + "/" + loc
			}
			out = append(out, component.ImplicitDependency{Kind: component.KindLinkedService, Name: name, Location: loc})
		}
		return true
	}, opts...)
	return out
}

// Extract fills the declared and implicit dependencies of c in place.
func Extract(c *component.Component) {
	c.Declared = ParseDeclared(c.DependsOn)
	c.Implicit = Implicit(c)
}

// ExtractAll runs Extract over every component.
func ExtractAll(comps []*component.Component) {
	for _, c := range comps {
		Extract(c)
	}
}
