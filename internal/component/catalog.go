package component

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrCatalogFrozen is returned when a component is added after Freeze.
var ErrCatalogFrozen = errors.New("catalog is frozen")

// DuplicateError rejects a component whose name is already taken within its kind.
type DuplicateError struct {
	Kind Kind
	Name string
	// Existing is the sub-type of the component that keeps the name.
	Existing string
}

func (e *DuplicateError) Error() string {
	if e.Existing != "" {
		return fmt.Sprintf("duplicate %s %q (already defined as %s)", e.Kind, e.Name, e.Existing)
	}
	return fmt.Sprintf("duplicate %s %q", e.Kind, e.Name)
}

// Catalog holds every parsed component plus name lookups per kind.
// It is written during parsing and becomes read-only once frozen, which is the
// barrier between parse-all and resolve-all.
type Catalog struct {
	mu     sync.RWMutex
	frozen bool
	order  []*Component
	byKind map[Kind]map[string]*Component
}

// NewCatalog creates an empty, writable catalog.
func NewCatalog() *Catalog {
	return &Catalog{byKind: make(map[Kind]map[string]*Component)}
}

// Add registers a component. Names are unique within a kind: the first
// component keeps the name and later ones get a *DuplicateError.
func (c *Catalog) Add(comp *Component) error {
	if comp == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return ErrCatalogFrozen
	}
	m, ok := c.byKind[comp.Kind]
	if !ok {
		m = make(map[string]*Component)
		c.byKind[comp.Kind] = m
	}
	if prev, dup := m[comp.Name]; dup {
		return &DuplicateError{Kind: comp.Kind, Name: comp.Name, Existing: prev.SubType}
	}
	c.order = append(c.order, comp)
	m[comp.Name] = comp
	return nil
}

// Freeze makes the catalog read-only.
func (c *Catalog) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (c *Catalog) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// Get looks a component up by kind and name.
func (c *Catalog) Get(kind Kind, name string) (*Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.byKind[kind][name]
	return comp, ok
}

// Dataset looks up a dataset definition by name.
func (c *Catalog) Dataset(name string) (*Component, bool) {
	return c.Get(KindDataset, name)
}

// LinkedService looks up a linked-service definition by name.
func (c *Catalog) LinkedService(name string) (*Component, bool) {
	return c.Get(KindLinkedService, name)
}

// Pipeline looks up a pipeline by name.
func (c *Catalog) Pipeline(name string) (*Component, bool) {
	return c.Get(KindPipeline, name)
}

// All returns components in insertion order.
func (c *Catalog) All() []*Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Component, len(c.order))
	copy(out, c.order)
	return out
}

// OfKind returns the components of one kind sorted by name.
func (c *Catalog) OfKind(kind Kind) []*Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Component, 0, len(c.byKind[kind]))
	for _, comp := range c.byKind[kind] {
		out = append(out, comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered components.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
