// Package transform rewrites parsed pipelines into the destination shape:
// dataset references become inline datasetSettings, linked services become
// connection references, and invoke-pipeline targets become pending references.
package transform

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"factorylift/internal/activity"
	"factorylift/internal/component"
	"factorylift/internal/extractor"
	"factorylift/internal/metrics"
	"factorylift/internal/resolver"
)

// ConnectionResolver maps a linked service seen from one activity role to a
// destination connection id.
type ConnectionResolver interface {
	Resolve(req resolver.Request) resolver.Resolution
}

// Pipeline is a transformed pipeline in destination shape.
type Pipeline struct {
	Name       string              `json:"name"`
	Properties PipelineProperties  `json:"properties"`
	Pending    []*PendingReference `json:"pendingReferences,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
}

type PipelineProperties struct {
	Description string           `json:"description,omitempty"`
	Activities  []map[string]any `json:"activities"`
	Parameters  map[string]any   `json:"parameters,omitempty"`
	Variables   map[string]any   `json:"variables,omitempty"`
	Policy      map[string]any   `json:"policy,omitempty"`
	Annotations []any            `json:"annotations,omitempty"`
}

// AddWarning appends a formatted warning once.
func (p *Pipeline) AddWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, w := range p.Warnings {
		if w == msg {
			return
		}
	}
	p.Warnings = append(p.Warnings, msg)
}

// Scope is the per-activity view handed to an activity transformer.
type Scope struct {
	Pipeline string
	Path     []string
	Dialect  component.Dialect
	out      *Pipeline
}

// ActivityPath renders the current activity path, e.g. "Loop/Copy1".
func (sc *Scope) ActivityPath() string {
	return activity.JoinPath(sc.Path)
}

// Activity is the innermost activity name, which keys mapping lookups.
func (sc *Scope) Activity() string {
	if len(sc.Path) == 0 {
		return ""
	}
	return sc.Path[len(sc.Path)-1]
}

// Warn records a warning on the pipeline, prefixed with the activity location.
func (sc *Scope) Warn(format string, args ...any) {
	sc.out.AddWarning("activity %q in pipeline %q: %s", sc.ActivityPath(), sc.Pipeline, fmt.Sprintf(format, args...))
}

func (sc *Scope) child(name string) *Scope {
	return &Scope{
		Pipeline: sc.Pipeline,
		Path:     append(append([]string(nil), sc.Path...), name),
		Dialect:  sc.Dialect,
		out:      sc.out,
	}
}

// Func transforms one activity. act is a private deep copy the function may
// edit and return.
type Func func(t *Transformer, sc *Scope, act map[string]any) (map[string]any, error)

// Registry maps lowercase activity types to transformers.
type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

// Register binds fn to each of the activity types.
func (r *Registry) Register(fn Func, types ...string) {
	for _, typ := range types {
		r.funcs[strings.ToLower(typ)] = fn
	}
}

func (r *Registry) Lookup(activityType string) (Func, bool) {
	fn, ok := r.funcs[strings.ToLower(activityType)]
	return fn, ok
}

// Types lists the registered activity types.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns a registry with every built-in activity transformer.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(transformCopy, "Copy")
	r.Register(datasetBound, "Lookup", "GetMetadata")
	r.Register(transformDelete, "Delete")
	r.Register(transformContainer, "ForEach", "Until", "IfCondition", "Switch")
	r.Register(transformExecutePipeline, "ExecutePipeline")
	r.Register(linkedServiceBound, "Script", "SqlServerStoredProcedure", "AzureFunctionActivity",
		"DatabricksNotebook", "DatabricksSparkJar", "DatabricksSparkPython")
	r.Register(passthrough, "Wait", "SetVariable", "AppendVariable", "Filter", "Fail", "WebActivity", "WebHook")
	return r
}

// Transformer holds the read-only inputs shared by every pipeline transform.
// It is safe for concurrent use once the catalog is frozen.
type Transformer struct {
	catalog  *component.Catalog
	conns    ConnectionResolver
	registry *Registry
	types    *TypeMap
	verifier TypeVerifier
	policy   VerificationPolicy
	logger   *slog.Logger
	metrics  *metrics.Collector
}

type Option func(*Transformer)

func WithRegistry(r *Registry) Option { return func(t *Transformer) { t.registry = r } }

func WithTypeMap(m *TypeMap) Option { return func(t *Transformer) { t.types = m } }

func WithLogger(l *slog.Logger) Option {
	return func(t *Transformer) {
		if l != nil {
			t.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option { return func(t *Transformer) { t.metrics = m } }

// WithVerifier checks destination type names against v under policy p.
func WithVerifier(v TypeVerifier, p VerificationPolicy) Option {
	return func(t *Transformer) { t.verifier, t.policy = v, p }
}

func New(catalog *component.Catalog, conns ConnectionResolver, opts ...Option) *Transformer {
	t := &Transformer{
		catalog:  catalog,
		conns:    conns,
		registry: DefaultRegistry(),
		types:    NewTypeMap(nil),
		policy:   PolicyAssumeSupported,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TransformPipeline converts one pipeline component. A RequiredReferenceError
// fails the whole pipeline; softer gaps deactivate single activities and are
// reported as warnings on the result.
func (t *Transformer) TransformPipeline(c *component.Component) (*Pipeline, error) {
	if !t.catalog.Frozen() {
		return nil, ErrCatalogNotFrozen
	}
	if c == nil || c.Kind != component.KindPipeline || c.Pipeline == nil {
		return nil, fmt.Errorf("transform: %v is not a parsed pipeline", componentName(c))
	}

	out := &Pipeline{
		Name: c.Name,
		Properties: PipelineProperties{
			Description: c.Pipeline.Description,
			Parameters:  deepCopyMap(c.Pipeline.Parameters),
			Variables:   deepCopyMap(c.Pipeline.Variables),
			Policy:      deepCopyMap(c.Pipeline.Policy),
			Annotations: deepCopySlice(c.Pipeline.Annotations),
		},
	}
	root := &Scope{Pipeline: c.Name, Dialect: c.Dialect, out: out}
	acts, err := t.transformList(root, c.Pipeline.Activities)
	if err != nil {
		t.logger.Warn("pipeline transform failed", "pipeline", c.Name, "err", err)
		return nil, err
	}
	out.Properties.Activities = acts
	sort.SliceStable(out.Pending, func(i, j int) bool { return out.Pending[i].Activity < out.Pending[j].Activity })
	t.logger.Debug("pipeline transformed", "pipeline", c.Name, "activities", len(acts),
		"pending", len(out.Pending), "warnings", len(out.Warnings))
	return out, nil
}

func (t *Transformer) transformList(parent *Scope, acts []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(acts))
	for _, act := range acts {
		sc := parent.child(activity.Name(act))
		res, err := t.transformActivity(sc, act)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (t *Transformer) transformActivity(sc *Scope, act map[string]any) (map[string]any, error) {
	typ := activity.Type(act)
	work := deepCopyMap(act)

	if reason, unsupported := extractor.UnsupportedActivityReason(sc.Dialect, typ); unsupported {
		deactivate(work)
		sc.Warn("type %s is not supported at the destination (%s); carried over inactive", typ, reason)
		t.metrics.ActivityTransformed(typ, "unsupported")
		return finish(work), nil
	}

	fn, ok := t.registry.Lookup(typ)
	outcome := "transformed"
	if !ok {
		fn = linkedServiceBound
		outcome = "passthrough"
		sc.Warn("no dedicated transformer for type %q; carried over with connection binding only", typ)
	}
	res, err := fn(t, sc, work)
	if err != nil {
		t.metrics.ActivityTransformed(typ, "failed")
		return nil, err
	}
	if isInactive(res) {
		outcome = "deactivated"
	}
	t.metrics.ActivityTransformed(typ, outcome)
	return finish(res), nil
}

// finish fills the fields every destination activity carries.
func finish(act map[string]any) map[string]any {
	if _, ok := act["dependsOn"]; !ok {
		act["dependsOn"] = []any{}
	}
	if _, ok := act["userProperties"]; !ok {
		act["userProperties"] = []any{}
	}
	return act
}

// resolveConnection maps a linked service to a connection id, warning and
// returning "" when no tier matches.
func (t *Transformer) resolveConnection(sc *Scope, linkedService string, role resolver.Role) string {
	if t.conns == nil || linkedService == "" {
		return ""
	}
	res := t.conns.Resolve(resolver.Request{
		LinkedService: linkedService,
		Pipeline:      sc.Pipeline,
		Activity:      sc.Activity(),
		Role:          role,
	})
	if !res.Resolved() {
		return ""
	}
	if res.Tier == resolver.TierBridgeFuzzy {
		sc.Warn("linked service %q matched connection %q by name similarity %.2f; verify the mapping",
			linkedService, res.MatchedKey, res.Similarity)
	}
	return res.ConnectionID
}

func deactivate(act map[string]any) {
	act["state"] = "Inactive"
	act["onInactiveMarkAs"] = "Succeeded"
}

func isInactive(act map[string]any) bool {
	s, _ := act["state"].(string)
	return strings.EqualFold(s, "Inactive")
}

func componentName(c *component.Component) string {
	if c == nil {
		return "<nil>"
	}
	return c.ID()
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		return deepCopySlice(t)
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = deepCopyMap(m)
		}
		return out
	}
	return v
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopySlice(s []any) []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = deepCopy(v)
	}
	return out
}
