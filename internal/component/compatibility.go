package component

import "strings"

// Rule is one row of the compatibility table.
type Rule struct {
	Status Status
	// Note is attached as a warning when non-empty.
	Note string
}

// kindRules is keyed by kind only.
var kindRules = map[Kind]Rule{
	KindPipeline:           {Status: StatusSupported},
	KindDataset:            {Status: StatusSupported, Note: "dataset is inlined into the activities that reference it; no standalone dataset is created"},
	KindLinkedService:      {Status: StatusPartiallySupported, Note: "linked service must be mapped to a destination connection; credentials are not migrated"},
	KindTrigger:            {Status: StatusPartiallySupported, Note: "trigger is recreated as a pipeline schedule; review recurrence and time zone"},
	KindIntegrationRuntime: {Status: StatusSupported},
	KindGlobalParameter:    {Status: StatusPartiallySupported, Note: "global parameter becomes a workspace variable; update expressions that read it"},
	KindDataflow:           {Status: StatusUnsupported, Note: "data flows are not translated; rebuild the transformation on the destination"},
	KindCustomActivity:     {Status: StatusUnsupported, Note: "custom batch activities have no destination equivalent"},
	KindManagedIdentity:    {Status: StatusPartiallySupported, Note: "managed identity must be granted access on the destination workspace"},
}

// subTypeRules refine kindRules. Keys are lowercase sub-types.
var subTypeRules = map[Kind]map[string]Rule{
	KindDataflow: {
		"mappingdataflow":   {Status: StatusUnsupported, Note: "mapping data flow is not migrated; rebuild it as a dataflow or notebook"},
		"wranglingdataflow": {Status: StatusUnsupported, Note: "Power Query data flow is not migrated; rebuild it as a dataflow"},
		"flowlet":           {Status: StatusUnsupported, Note: "flowlets are not migrated"},
	},
	KindTrigger: {
		"scheduletrigger":       {Status: StatusPartiallySupported, Note: "schedule trigger is recreated as a pipeline schedule; review recurrence and time zone"},
		"blobeventstrigger":     {Status: StatusPartiallySupported, Note: "storage event trigger must be recreated as a storage event rule"},
		"tumblingwindowtrigger": {Status: StatusUnsupported, Note: "tumbling window triggers have no destination equivalent; window state and backfill are lost"},
		"customeventstrigger":   {Status: StatusUnsupported, Note: "custom event triggers have no destination equivalent"},
	},
	KindIntegrationRuntime: {
		"managed":    {Status: StatusSupported},
		"selfhosted": {Status: StatusPartiallySupported, Note: "self-hosted integration runtime requires an on-premises data gateway on the destination"},
	},
}

// Classify returns the compatibility rule for a kind and optional sub-type.
func Classify(kind Kind, subType string) Rule {
	if rules, ok := subTypeRules[kind]; ok {
		if r, ok := rules[strings.ToLower(subType)]; ok {
			return r
		}
	}
	if r, ok := kindRules[kind]; ok {
		return r
	}
	return Rule{Status: StatusUnsupported, Note: "unknown component kind " + string(kind)}
}

// ApplyRule sets the component status from the table and records its note.
func (c *Component) ApplyRule() {
	r := Classify(c.Kind, c.SubType)
	c.Status = r.Status
	if r.Note != "" {
		c.AddWarning("%s", r.Note)
	}
}
