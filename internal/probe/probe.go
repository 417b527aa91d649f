// Package probe reads loosely typed JSON objects through ordered lists of
// candidate field paths. The first candidate present wins, so the fallback
// order of every legacy field variant lives in one place.
package probe

import (
	"fmt"
	"strings"
)

// First returns the value at the first candidate path present in obj.
// A candidate is a dot-separated path; each segment matches exactly first and
// then case-insensitively. The matched candidate is returned for diagnostics.
func First(obj map[string]any, candidates ...string) (any, string, bool) {
	for _, c := range candidates {
		if v, ok := lookupPath(obj, c); ok && v != nil {
			return v, c, true
		}
	}
	return nil, "", false
}

// Map returns the first candidate that holds an object, or nil.
func Map(obj map[string]any, candidates ...string) map[string]any {
	for _, c := range candidates {
		if v, ok := lookupPath(obj, c); ok {
			if m, ok := v.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// MapOrEmpty is Map defaulting to an empty object.
func MapOrEmpty(obj map[string]any, candidates ...string) map[string]any {
	if m := Map(obj, candidates...); m != nil {
		return m
	}
	return map[string]any{}
}

// Slice returns the first candidate that holds an array, or nil.
func Slice(obj map[string]any, candidates ...string) []any {
	for _, c := range candidates {
		if v, ok := lookupPath(obj, c); ok {
			if s, ok := v.([]any); ok {
				return s
			}
		}
	}
	return nil
}

// String returns the first candidate holding a non-empty string.
func String(obj map[string]any, candidates ...string) string {
	for _, c := range candidates {
		if v, ok := lookupPath(obj, c); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Objects returns the elements of an array that are objects, skipping the rest.
func Objects(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// RefName extracts the target name of a reference value. It accepts the
// object form {"referenceName": "X"} and the bare string form "X".
func RefName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return String(t, "referenceName", "ReferenceName", "name")
	}
	return ""
}

// Text renders scalar values as strings; objects and arrays yield "".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool, float64, int, int64:
		return fmt.Sprint(t)
	}
	return ""
}

func lookupPath(obj map[string]any, path string) (any, bool) {
	if obj == nil || path == "" {
		return nil, false
	}
	var cur any = obj
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := lookupKey(m, seg)
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func lookupKey(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	// Case-insensitive fallback. Among several case variants, pick the
	// lexically smallest key so the choice does not depend on map order.
	var (
		found bool
		bestK string
		bestV any
	)
	for k, v := range m {
		if strings.EqualFold(k, key) && (!found || k < bestK) {
			found, bestK, bestV = true, k, v
		}
	}
	return bestV, found
}
