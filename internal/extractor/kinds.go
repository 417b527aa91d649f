package extractor

import (
	"sort"
	"strings"

	"factorylift/internal/activity"
	"factorylift/internal/component"
	"factorylift/internal/probe"
	"factorylift/internal/walker"
)

func mapPipeline(_ *Normalizer, _ Resource, c *component.Component) error {
	props := c.Definition
	acts := probe.Slice(props,
		"activities",
		"pipeline.activities",
		"typeProperties.activities",
		"properties.activities",
	)
	body := &component.PipelineBody{
		Activities:  probe.Objects(acts),
		Parameters:  probe.MapOrEmpty(props, "parameters", "pipeline.parameters", "properties.parameters"),
		Variables:   probe.MapOrEmpty(props, "variables", "pipeline.variables", "properties.variables"),
		Policy:      probe.MapOrEmpty(props, "policy", "pipelinePolicy", "pipeline.policy", "properties.policy"),
		Annotations: probe.Slice(props, "annotations", "pipeline.annotations"),
		Description: probe.String(props, "description", "pipeline.description"),
	}
	if body.Annotations == nil {
		body.Annotations = []any{}
	}
	c.Pipeline = body
	c.ApplyRule()

	activity.Visit(body.Activities, func(path []string, act map[string]any) {
		typ := activity.Type(act)
		if typ == "" {
			c.AddWarning("activity %q has no type and will be deactivated", activity.JoinPath(path))
			c.Downgrade(component.StatusPartiallySupported)
			return
		}
		if reason, ok := UnsupportedActivityReason(c.Dialect, typ); ok {
			c.AddWarning("activity %q (%s): %s", activity.JoinPath(path), typ, reason)
			c.Downgrade(component.StatusPartiallySupported)
		}
	})
	return nil
}

func mapDataset(_ *Normalizer, _ Resource, c *component.Component) error {
	c.SubType = probe.String(c.Definition, "type")
	c.ApplyRule()
	if c.SubType == "" {
		c.AddWarning("dataset has no type; activities that read it cannot derive a destination type")
		c.Downgrade(component.StatusPartiallySupported)
	}
	ls := probe.Map(c.Definition, "linkedServiceName")
	if ls == nil {
		c.AddWarning("dataset has no linked service reference")
		c.Downgrade(component.StatusPartiallySupported)
	} else if len(probe.Map(ls, "parameters")) > 0 {
		c.AddWarning("dataset passes parameters to linked service %q; parameterized connections must be split into one connection per value", probe.RefName(ls))
	}
	return nil
}

func mapLinkedService(_ *Normalizer, _ Resource, c *component.Component) error {
	c.SubType = probe.String(c.Definition, "type")
	c.ApplyRule()
	if len(probe.Map(c.Definition, "parameters")) > 0 || containsExpression(c.Definition, "@linkedService()") {
		c.AddWarning("linked service is parameterized; create one destination connection per distinct parameter value")
	}
	if ir := probe.RefName(probe.Map(c.Definition, "connectVia")); ir != "" && !strings.EqualFold(ir, "AutoResolveIntegrationRuntime") {
		c.AddWarning("linked service connects through integration runtime %q; a gateway may be required on the destination", ir)
	}
	for _, ref := range walker.References(c.Definition) {
		if ref.Value.Type == "LinkedServiceReference" {
			c.AddWarning("secret is read from linked service %q (%s); re-enter it on the destination connection", ref.Value.Name, ref.Path)
		}
	}
	return nil
}

func mapTrigger(_ *Normalizer, _ Resource, c *component.Component) error {
	c.SubType = probe.String(c.Definition, "type")
	c.ApplyRule()
	if strings.EqualFold(probe.String(c.Definition, "runtimeState"), "Stopped") {
		c.AddWarning("trigger is stopped in the source; its schedule is created disabled")
	}
	return nil
}

func mapIntegrationRuntime(_ *Normalizer, _ Resource, c *component.Component) error {
	c.SubType = probe.String(c.Definition, "type")
	c.ApplyRule()
	if probe.Map(c.Definition, "typeProperties.linkedInfo") != nil {
		c.AddWarning("integration runtime is shared from another factory; the owning gateway must be migrated first")
	}
	return nil
}

func mapGlobalParameter(_ *Normalizer, _ Resource, c *component.Component) error {
	c.SubType = probe.String(c.Definition, "type")
	c.ApplyRule()
	return nil
}

func mapDataflow(_ *Normalizer, _ Resource, c *component.Component) error {
	c.SubType = probe.String(c.Definition, "type")
	if c.SubType == "" {
		c.SubType = "MappingDataFlow"
	}
	c.ApplyRule()
	return nil
}

// identityCredentials are credential types that carry an identity rather than a secret.
var identityCredentials = map[string]bool{
	"managedidentity":             true,
	"userassignedmanagedidentity": true,
}

func mapCredential(_ *Normalizer, _ Resource, c *component.Component) error {
	typ := probe.String(c.Definition, "type")
	if typ == "" {
		return &ParseError{Type: c.ResourceType, Name: c.Name, Reason: "credential has no inner type"}
	}
	if identityCredentials[strings.ToLower(typ)] {
		c.Kind = component.KindManagedIdentity
		c.SubType = typ
		c.ApplyRule()
		return nil
	}
	c.Kind = component.KindLinkedService
	c.SubType = "Credential/" + typ
	c.Status = component.StatusPartiallySupported
	c.AddWarning("credential %q holds a %s secret; re-enter it on the destination connection", c.Name, typ)
	return nil
}

// derivedFrom synthesizes components that live inside another component.
func derivedFrom(c *component.Component) []*component.Component {
	if c.Kind != component.KindPipeline || c.Pipeline == nil {
		return nil
	}
	var out []*component.Component
	activity.Visit(c.Pipeline.Activities, func(path []string, act map[string]any) {
		if !strings.EqualFold(activity.Type(act), "Custom") {
			return
		}
		ca := &component.Component{
			Name:         c.Name + "/" + activity.JoinPath(path),
			Kind:         component.KindCustomActivity,
			SubType:      "Custom",
			ResourceType: c.ResourceType,
			Dialect:      c.Dialect,
			Definition:   act,
			Warnings:     []string{},
			Implicit:     []component.ImplicitDependency{},
		}
		ca.ApplyRule()
		out = append(out, ca)
	})
	return out
}

// factoryGlobalParameters reads properties.globalParameters of a factory or
// workspace resource, one component per parameter, sorted by name.
func factoryGlobalParameters(res Resource) []*component.Component {
	params := probe.Map(res.Properties, "globalParameters")
	if len(params) == 0 {
		return nil
	}
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]*component.Component, 0, len(names))
	for _, name := range names {
		def, _ := params[name].(map[string]any)
		if def == nil {
			def = map[string]any{"value": params[name]}
		}
		gp := &component.Component{
			Name:         name,
			Kind:         component.KindGlobalParameter,
			SubType:      probe.String(def, "type"),
			ResourceType: res.Type,
			Dialect:      DetectDialect(res.Type),
			Definition:   def,
			Warnings:     []string{},
			Implicit:     []component.ImplicitDependency{},
		}
		gp.ApplyRule()
		out = append(out, gp)
	}
	return out
}

func containsExpression(root any, token string) bool {
	found := false
	walker.Walk(root, func(_ walker.Path, node any) bool {
		if found {
			return false
		}
		if s, ok := node.(string); ok && strings.Contains(s, token) {
			found = true
		}
		return !found
	})
	return found
}
