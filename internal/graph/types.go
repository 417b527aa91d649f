package graph

import "factorylift/internal/component"

type RelationKind string

const (
	RelationTriggers   RelationKind = "triggers"
	RelationUses       RelationKind = "uses"
	RelationExecutes   RelationKind = "executes"
	RelationReferences RelationKind = "references"
	RelationDependsOn  RelationKind = "dependsOn"
)

type GapReason string

const (
	ReasonNotFound GapReason = "not_found"
	ReasonUnparsed GapReason = "unparsed"
)

// PlaceholderSuffix is appended to the label of synthesized nodes.
const PlaceholderSuffix = "(referenced but not found)"

// Node is one vertex of the artifact graph.
type Node struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Kind        component.Kind   `json:"kind"`
	SubType     string           `json:"subType,omitempty"`
	Label       string           `json:"label"`
	Status      component.Status `json:"status,omitempty"`
	Placeholder bool             `json:"placeholder,omitempty"`

	Component *component.Component `json:"-"`
}

// Edge is a directed, typed relationship. Location records where the first
// occurrence was found and does not take part in de-duplication.
type Edge struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Relation RelationKind `json:"relation"`
	Location string       `json:"location,omitempty"`
}

// Gap records a reference that has no real target, kept for risk reporting.
type Gap struct {
	From       string         `json:"from"`
	Target     string         `json:"target"`
	TargetKind component.Kind `json:"targetKind,omitempty"`
	Relation   RelationKind   `json:"relation,omitempty"`
	Reason     GapReason      `json:"reason"`
}

type edgeKey struct {
	from, to string
	rel      RelationKind
}
