// Package walker performs deterministic depth-first walks over decoded JSON trees.
package walker

import (
	"sort"
	"strconv"
	"strings"
)

// Path is the sequence of keys and array indexes leading to a node.
type Path []string

func (p Path) String() string {
	return strings.Join(p, "/")
}

func (p Path) child(seg string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// Visitor is called for every node. Returning false stops descent below it.
type Visitor func(path Path, node any) bool

type options struct {
	skip map[string]bool
}

// Option configures a walk.
type Option func(*options)

// SkipKeys prevents descent into object fields with the given names.
// The root node itself is never skipped.
func SkipKeys(keys ...string) Option {
	return func(o *options) {
		for _, k := range keys {
			o.skip[k] = true
		}
	}
}

// Walk visits root and its descendants. Object keys are visited in sorted order.
func Walk(root any, visit Visitor, opts ...Option) {
	o := options{skip: map[string]bool{}}
	for _, opt := range opts {
		opt(&o)
	}
	walk(nil, root, visit, &o)
}

func walk(path Path, node any, visit Visitor, o *options) {
	if !visit(path, node) {
		return
	}
	switch t := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			if o.skip[k] {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(path.child(k), t[k], visit, o)
		}
	case []any:
		for i, v := range t {
			walk(path.child(strconv.Itoa(i)), v, visit, o)
		}
	}
}

// Found is one extracted value and where it was found.
type Found[T any] struct {
	Path  string
	Value T
}

// Extractor decides whether an object matches and what to take from it.
type Extractor[T any] func(path Path, obj map[string]any) (T, bool)

// Collect walks root and gathers the values produced by extract for every
// matching object. Matched objects are not descended into.
func Collect[T any](root any, extract Extractor[T], opts ...Option) []Found[T] {
	var out []Found[T]
	Walk(root, func(path Path, node any) bool {
		obj, ok := node.(map[string]any)
		if !ok {
			return true
		}
		v, ok := extract(path, obj)
		if !ok {
			return true
		}
		out = append(out, Found[T]{Path: path.String(), Value: v})
		return false
	}, opts...)
	return out
}

// Reference is a typed reference object such as
// {"referenceName": "LS1", "type": "LinkedServiceReference"}.
type Reference struct {
	Type       string
	Name       string
	Parameters map[string]any
}

// ReferenceObject matches objects carrying referenceName and a *Reference type.
func ReferenceObject(_ Path, obj map[string]any) (Reference, bool) {
	name, _ := obj["referenceName"].(string)
	typ, _ := obj["type"].(string)
	if name == "" || !strings.HasSuffix(typ, "Reference") {
		return Reference{}, false
	}
	params, _ := obj["parameters"].(map[string]any)
	return Reference{Type: typ, Name: name, Parameters: params}, true
}

// References collects every reference object under root.
func References(root any, opts ...Option) []Found[Reference] {
	return Collect(root, ReferenceObject, opts...)
}
