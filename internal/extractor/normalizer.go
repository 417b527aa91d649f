package extractor

import (
	"errors"
	"log/slog"

	"factorylift/internal/component"
	"factorylift/internal/metrics"
)

// mapFunc fills a component from a resource. It may change c.Kind (credentials do).
type mapFunc func(n *Normalizer, res Resource, c *component.Component) error

type entry struct {
	kind component.Kind
	fn   mapFunc
}

// dispatch is keyed by normalized type suffix. Singular keys cover
// directory exports where the folder name stands in for the type.
var dispatch = map[string]entry{
	"pipelines":           {component.KindPipeline, mapPipeline},
	"pipeline":            {component.KindPipeline, mapPipeline},
	"datasets":            {component.KindDataset, mapDataset},
	"dataset":             {component.KindDataset, mapDataset},
	"linkedservices":      {component.KindLinkedService, mapLinkedService},
	"linkedservice":       {component.KindLinkedService, mapLinkedService},
	"triggers":            {component.KindTrigger, mapTrigger},
	"trigger":             {component.KindTrigger, mapTrigger},
	"integrationruntimes": {component.KindIntegrationRuntime, mapIntegrationRuntime},
	"integrationruntime":  {component.KindIntegrationRuntime, mapIntegrationRuntime},
	"globalparameters":    {component.KindGlobalParameter, mapGlobalParameter},
	"globalparameter":     {component.KindGlobalParameter, mapGlobalParameter},
	"dataflows":           {component.KindDataflow, mapDataflow},
	"dataflow":            {component.KindDataflow, mapDataflow},
	"credentials":         {component.KindManagedIdentity, mapCredential},
	"credential":          {component.KindManagedIdentity, mapCredential},
}

// factorySuffixes are container resources whose children and global
// parameters are migrated but which are not migration units themselves.
var factorySuffixes = map[string]bool{
	"factories":  true,
	"workspaces": true,
}

// Kind reports which component kind a resource type maps to.
func Kind(resourceType string) (component.Kind, bool) {
	e, ok := dispatch[TypeSuffix(resourceType)]
	return e.kind, ok
}

// Normalizer turns resources from either export dialect into components and
// registers them in a catalog.
type Normalizer struct {
	catalog *component.Catalog
	logger  *slog.Logger
	metrics *metrics.Collector
}

type Option func(*Normalizer)

func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(n *Normalizer) { n.metrics = m }
}

// NewNormalizer creates a normalizer writing into catalog.
func NewNormalizer(catalog *component.Catalog, opts ...Option) *Normalizer {
	n := &Normalizer{catalog: catalog, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Catalog returns the catalog the normalizer writes into.
func (n *Normalizer) Catalog() *component.Catalog {
	return n.catalog
}

// Normalize produces exactly one component for a recognized resource, or nil
// when the type is not a migration unit. A malformed resource yields a *ParseError.
func (n *Normalizer) Normalize(res Resource) (*component.Component, error) {
	e, ok := dispatch[TypeSuffix(res.Type)]
	if !ok {
		return nil, nil
	}
	name := ResourceName(res.Name)
	if name == "" {
		return nil, &ParseError{Origin: res.Origin, Type: res.Type, Name: res.Name, Reason: "missing or unreadable name"}
	}
	c := &component.Component{
		Name:         name,
		Kind:         e.kind,
		ResourceType: res.Type,
		Dialect:      DetectDialect(res.Type),
		Definition:   res.Properties,
		DependsOn:    append([]string(nil), res.DependsOn...),
		Warnings:     []string{},
		Implicit:     []component.ImplicitDependency{},
	}
	if c.Definition == nil {
		c.Definition = map[string]any{}
	}
	if err := e.fn(n, res, c); err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			if pe.Origin == "" {
				pe.Origin = res.Origin
			}
			return nil, pe
		}
		return nil, &ParseError{Origin: res.Origin, Type: res.Type, Name: name, Reason: err.Error()}
	}
	return c, nil
}

// Ingest normalizes a resource and its nested children, registers every
// component in the catalog, and returns them in document order. Malformed
// resources are logged and skipped.
func (n *Normalizer) Ingest(res Resource) []*component.Component {
	var out []*component.Component
	n.ingest(res, &out)
	return out
}

func (n *Normalizer) ingest(res Resource, out *[]*component.Component) {
	suffix := TypeSuffix(res.Type)
	c, err := n.Normalize(res)
	switch {
	case err != nil:
		n.Skip(err)
	case c != nil:
		n.register(c, out)
		for _, derived := range derivedFrom(c) {
			n.register(derived, out)
		}
	case factorySuffixes[suffix]:
		for _, gp := range factoryGlobalParameters(res) {
			n.register(gp, out)
		}
	default:
		n.logger.Debug("resource type is not a migration unit", "type", res.Type, "name", res.Name, "origin", res.Origin)
		n.metrics.ResourceSkipped("unrecognized_type")
	}
	for _, child := range res.Resources {
		n.ingest(child, out)
	}
}

func (n *Normalizer) register(c *component.Component, out *[]*component.Component) {
	if err := n.catalog.Add(c); err != nil {
		n.logger.Warn("component not registered", "kind", c.Kind, "name", c.Name, "error", err)
		var dup *component.DuplicateError
		if errors.As(err, &dup) {
			n.metrics.ResourceSkipped("duplicate")
		}
		return
	}
	n.metrics.ComponentParsed(string(c.Kind), string(c.Status))
	*out = append(*out, c)
}

// Skip logs a resource that could not be parsed.
func (n *Normalizer) Skip(err error) {
	n.logger.Warn("resource skipped", "error", err)
	n.metrics.ResourceSkipped("malformed")
}
