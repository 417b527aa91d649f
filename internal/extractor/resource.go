package extractor

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"factorylift/internal/probe"
)

// Resource is one typed record of a source export document.
type Resource struct {
	Type       string
	Name       string
	APIVersion string
	Properties map[string]any
	DependsOn  []string
	Resources  []Resource
	// Origin describes where the record was read from, e.g. "export.json#resources/3".
	Origin string
}

// ResourceFromMap converts a decoded JSON object into a Resource.
// Nested child resources that are malformed are dropped and reported in skipped.
func ResourceFromMap(obj map[string]any, origin string) (res Resource, skipped []*ParseError, err error) {
	res = Resource{
		Type:       probe.String(obj, "type", "Type"),
		Name:       probe.String(obj, "name", "Name"),
		APIVersion: probe.String(obj, "apiVersion"),
		Origin:     origin,
	}
	if res.Type == "" {
		return res, nil, &ParseError{Origin: origin, Name: res.Name, Reason: "missing type"}
	}

	if raw, _, ok := probe.First(obj, "properties", "Properties"); ok {
		props, isMap := raw.(map[string]any)
		if !isMap {
			return res, nil, &ParseError{Origin: origin, Type: res.Type, Name: res.Name, Reason: "properties is not an object"}
		}
		res.Properties = props
	} else {
		res.Properties = map[string]any{}
	}

	for _, d := range probe.Slice(obj, "dependsOn", "DependsOn") {
		if s, ok := d.(string); ok && s != "" {
			res.DependsOn = append(res.DependsOn, s)
		}
	}

	for i, child := range probe.Slice(obj, "resources") {
		childOrigin := origin + "/resources/" + strconv.Itoa(i)
		m, ok := child.(map[string]any)
		if !ok {
			skipped = append(skipped, &ParseError{Origin: childOrigin, Reason: "resource is not an object"})
			continue
		}
		c, childSkipped, err := ResourceFromMap(m, childOrigin)
		skipped = append(skipped, childSkipped...)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				skipped = append(skipped, pe)
			}
			continue
		}
		res.Resources = append(res.Resources, c)
	}
	return res, skipped, nil
}

var quotedLiteral = regexp.MustCompile(`'([^']*)'`)

// ResourceName recovers the plain name from ARM name expressions such as
// "[concat(parameters('factoryName'), '/P1')]" and from "factory/P1" paths.
func ResourceName(raw string) string {
	name := strings.TrimSpace(raw)
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		literals := quotedLiteral.FindAllStringSubmatch(name, -1)
		if len(literals) == 0 {
			return ""
		}
		name = literals[len(literals)-1][1]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}
