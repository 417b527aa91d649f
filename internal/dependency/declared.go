// Package dependency derives the declared and implicit dependencies of components.
package dependency

import (
	"regexp"
	"strings"

	"factorylift/internal/component"
)

// resourceIDRe handles "[resourceId('Microsoft.DataFactory/factories/linkedServices', parameters('factoryName'), 'LS1')]".
var resourceIDRe = regexp.MustCompile(`(?i)resourceId\(\s*'Microsoft\.(?:DataFactory/factories|Synapse/workspaces)/([A-Za-z]+)'\s*,[^,]+,\s*'([^']+)'\s*\)`)

var kindSegments = map[string]component.DependencyKind{
	"pipelines":      component.DepPipeline,
	"datasets":       component.DepDataset,
	"linkedservices": component.DepLinkedService,
	"triggers":       component.DepTrigger,
	"dataflows":      component.DepDataflow,
}

// ParseExpression extracts the target kind and name of one declared
// dependency. ok is false when the expression names no known kind.
func ParseExpression(expr string) (kind component.DependencyKind, name string, ok bool) {
	if m := resourceIDRe.FindStringSubmatch(expr); m != nil {
		if k, known := kindSegments[strings.ToLower(m[1])]; known {
			if n := normalizeName(m[2]); n != "" {
				return k, n, true
			}
		}
		return component.DepUnparsed, "", false
	}
	// Look for a "/{kind}/{name}" segment pair, e.g. in
	// "[concat(variables('factoryId'), '/pipelines/P2')]".
	parts := strings.Split(expr, "/")
	for i := 0; i+1 < len(parts); i++ {
		k, known := kindSegments[strings.ToLower(parts[i])]
		if !known {
			continue
		}
		if n := normalizeName(parts[i+1]); n != "" && !strings.ContainsAny(n, "'(),[") {
			return k, n, true
		}
	}
	return component.DepUnparsed, "", false
}

// ParseDeclared buckets declared dependency expressions by target kind.
// Expressions naming no known kind are kept verbatim in Unparsed.
func ParseDeclared(exprs []string) component.Dependencies {
	var deps component.Dependencies
	for _, expr := range exprs {
		kind, name, ok := ParseExpression(expr)
		if !ok {
			deps.Add(component.DepUnparsed, expr)
			continue
		}
		deps.Add(kind, name)
	}
	return deps
}

func normalizeName(raw string) string {
	return strings.TrimSpace(strings.TrimRight(raw, "')] \t"))
}
