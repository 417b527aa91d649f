package component

import (
	"fmt"
	"strings"
)

// Kind is the migration unit category of a Component.
type Kind string

const (
	KindPipeline           Kind = "pipeline"
	KindDataset            Kind = "dataset"
	KindLinkedService      Kind = "linkedService"
	KindTrigger            Kind = "trigger"
	KindIntegrationRuntime Kind = "integrationRuntime"
	KindGlobalParameter    Kind = "globalParameter"
	KindDataflow           Kind = "dataflow"
	KindCustomActivity     Kind = "customActivity"
	KindManagedIdentity    Kind = "managedIdentity"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{
	KindPipeline,
	KindDataset,
	KindLinkedService,
	KindTrigger,
	KindIntegrationRuntime,
	KindGlobalParameter,
	KindDataflow,
	KindCustomActivity,
	KindManagedIdentity,
}

// Dialect identifies which vendor export format a resource came from.
type Dialect string

const (
	DialectDataFactory Dialect = "dataFactory"
	DialectSynapse     Dialect = "synapse"
	DialectUnknown     Dialect = "unknown"
)

// Status is the destination compatibility of a Component.
type Status string

const (
	StatusSupported          Status = "supported"
	StatusPartiallySupported Status = "partiallySupported"
	StatusUnsupported        Status = "unsupported"
)

// rank orders statuses from best to worst so downgrades never upgrade.
func (s Status) rank() int {
	switch s {
	case StatusSupported:
		return 0
	case StatusPartiallySupported:
		return 1
	case StatusUnsupported:
		return 2
	}
	return 0
}

// ImplicitDependency is a reference discovered inside a component body.
type ImplicitDependency struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
	// Location is a slash path inside the body, e.g. "activities/Copy1/inputs/0".
	Location string `json:"location,omitempty"`
	// Activity is the activity that owns the reference, empty for non-pipeline kinds.
	Activity string `json:"activity,omitempty"`
}

// Component is one parsed, typed migration unit.
type Component struct {
	Name         string  `json:"name"`
	Kind         Kind    `json:"kind"`
	SubType      string  `json:"subType,omitempty"`
	ResourceType string  `json:"resourceType"`
	Dialect      Dialect `json:"dialect"`

	// Definition is the kind-specific payload, usually the resource "properties" object.
	Definition map[string]any `json:"definition"`
	// Pipeline is set for pipeline components only.
	Pipeline *PipelineBody `json:"pipeline,omitempty"`

	Status   Status   `json:"compatibilityStatus"`
	Warnings []string `json:"warnings"`

	DependsOn []string             `json:"dependsOn,omitempty"`
	Declared  Dependencies         `json:"declaredDependencies"`
	Implicit  []ImplicitDependency `json:"implicitDependencies"`
}

// PipelineBody holds the normalized parts of a pipeline definition.
type PipelineBody struct {
	Activities  []map[string]any `json:"activities"`
	Parameters  map[string]any   `json:"parameters"`
	Variables   map[string]any   `json:"variables"`
	Policy      map[string]any   `json:"policy"`
	Annotations []any            `json:"annotations"`
	Description string           `json:"description,omitempty"`
}

// ID returns the graph identity of a component of the given kind and name.
func ID(kind Kind, name string) string {
	return string(kind) + ":" + name
}

// ParseID splits an id produced by ID.
func ParseID(id string) (Kind, string, error) {
	kind, name, ok := strings.Cut(id, ":")
	if !ok || kind == "" || name == "" {
		return "", "", fmt.Errorf("invalid component id %q, want <kind>:<name>", id)
	}
	return Kind(kind), name, nil
}

// ID returns the component's graph identity.
func (c *Component) ID() string {
	return ID(c.Kind, c.Name)
}

// AddWarning appends a formatted warning unless an identical one is already recorded.
func (c *Component) AddWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, w := range c.Warnings {
		if w == msg {
			return
		}
	}
	c.Warnings = append(c.Warnings, msg)
}

// Downgrade lowers the status to s if s is worse than the current status.
func (c *Component) Downgrade(s Status) {
	if s.rank() > c.Status.rank() {
		c.Status = s
	}
}
