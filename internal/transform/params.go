package transform

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"factorylift/internal/probe"
)

var (
	bracedParam   = regexp.MustCompile(`@\{\s*dataset\(\)\.([A-Za-z_][A-Za-z0-9_]*)\s*\}`)
	wholeParam    = regexp.MustCompile(`^@\{?\s*dataset\(\)\.([A-Za-z_][A-Za-z0-9_]*)\s*\}?$`)
	embeddedParam = regexp.MustCompile(`dataset\(\)\.([A-Za-z_][A-Za-z0-9_]*)`)
)

// EffectiveParameters merges caller-supplied values over the dataset's
// declared defaults. Declared parameters look like {"p": {"type": "string", "defaultValue": "x"}}.
func EffectiveParameters(declared, supplied map[string]any) map[string]any {
	out := make(map[string]any, len(declared)+len(supplied))
	for name, decl := range declared {
		if m, ok := decl.(map[string]any); ok {
			if v, ok := m["defaultValue"]; ok && v != nil {
				out[name] = v
			}
		}
	}
	for name, v := range supplied {
		out[name] = v
	}
	return out
}

// Substitute replaces dataset parameter expressions (@dataset().X and
// @{dataset().X}) in v using params, recursing through objects, arrays and
// Expression-wrapped values. A whole-value reference may carry an unbalanced
// brace ("@dataset().p}"). v is not modified. Names with no usable value are
// left untouched and returned sorted in missing. Applying Substitute to its own
// result with the same params returns the same result.
func Substitute(v any, params map[string]any) (out any, missing []string) {
	s := substituter{params: params, missing: map[string]bool{}}
	out = s.value(v)
	for name := range s.missing {
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return out, missing
}

type substituter struct {
	params  map[string]any
	missing map[string]bool
}

// lookup returns a usable parameter value. Values that themselves contain
// dataset parameter expressions are rejected so a second pass changes nothing.
func (s *substituter) lookup(name string) (any, bool) {
	v, ok := s.params[name]
	if !ok || v == nil || strings.Contains(exprText(v), "dataset()") {
		s.missing[name] = true
		return nil, false
	}
	return v, true
}

func (s *substituter) value(v any) any {
	switch t := v.(type) {
	case string:
		return s.str(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = s.value(item)
		}
		return out
	case map[string]any:
		if isExpression(t) {
			return s.expression(t)
		}
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = s.value(item)
		}
		return out
	}
	return v
}

// expression handles {"value": "...", "type": "Expression"}. When nothing
// dynamic remains the wrapper is dropped and the plain string returned.
func (s *substituter) expression(obj map[string]any) any {
	raw, _ := obj["value"].(string)
	replaced := s.str(raw)
	var text string
	switch r := replaced.(type) {
	case string:
		text = r
	case map[string]any:
		if isExpression(r) {
			return copyMap(r)
		}
		return r
	default:
		return r
	}
	if isDynamic(text) {
		out := copyMap(obj)
		out["value"] = text
		return out
	}
	return text
}

func (s *substituter) str(in string) any {
	if !strings.Contains(in, "dataset()") {
		return in
	}
	if m := wholeParam.FindStringSubmatch(in); m != nil {
		if v, ok := s.lookup(m[1]); ok {
			if obj, isMap := v.(map[string]any); isMap {
				return copyMap(obj)
			}
			return v
		}
		return in
	}

	out := bracedParam.ReplaceAllStringFunc(in, func(match string) string {
		name := bracedParam.FindStringSubmatch(match)[1]
		v, ok := s.lookup(name)
		if !ok {
			return match
		}
		if expr, isExpr := expressionBody(v); isExpr {
			return "@{" + expr + "}"
		}
		return interpolated(v)
	})

	// Inside a function expression such as "@concat(dataset().dir, '/x')".
	if strings.HasPrefix(out, "@") && !strings.HasPrefix(out, "@{") {
		out = embeddedParam.ReplaceAllStringFunc(out, func(match string) string {
			name := embeddedParam.FindStringSubmatch(match)[1]
			v, ok := s.lookup(name)
			if !ok {
				return match
			}
			if expr, isExpr := expressionBody(v); isExpr {
				return expr
			}
			return "'" + strings.ReplaceAll(interpolated(v), "'", "''") + "'"
		})
	}
	return out
}

// interpolated renders a value spliced into a larger string. Objects and
// arrays are written as JSON.
func interpolated(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return probe.Text(v)
}

func isExpression(m map[string]any) bool {
	typ, _ := m["type"].(string)
	_, hasValue := m["value"]
	return hasValue && strings.EqualFold(typ, "Expression")
}

// expressionBody returns the expression text without its leading "@".
func expressionBody(v any) (string, bool) {
	text := exprText(v)
	if !strings.HasPrefix(text, "@") {
		return "", false
	}
	if strings.HasPrefix(text, "@{") && strings.HasSuffix(text, "}") {
		return strings.TrimSuffix(strings.TrimPrefix(text, "@{"), "}"), true
	}
	return strings.TrimPrefix(text, "@"), true
}

func exprText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if isExpression(t) {
			s, _ := t["value"].(string)
			return s
		}
	}
	return ""
}

func isDynamic(s string) bool {
	return strings.HasPrefix(s, "@") || strings.Contains(s, "@{")
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
