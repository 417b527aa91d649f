// Package activity knows how pipeline activities nest inside container activities.
package activity

import (
	"strconv"
	"strings"

	"factorylift/internal/probe"
)

// Branch is one list of child activities inside a container activity.
type Branch struct {
	// Key locates the list inside typeProperties, e.g. "ifTrueActivities" or "cases/0/activities".
	Key        string
	Activities []map[string]any
}

// Name returns the activity name.
func Name(act map[string]any) string {
	return probe.String(act, "name", "Name")
}

// Type returns the activity type tag.
func Type(act map[string]any) string {
	return probe.String(act, "type", "Type")
}

// TypeProperties returns the activity's typeProperties, or nil.
func TypeProperties(act map[string]any) map[string]any {
	return probe.Map(act, "typeProperties", "TypeProperties")
}

// Retype replaces the activity's type and typeProperties, dropping the
// legacy capitalised variants of both keys.
func Retype(act map[string]any, typ string, tp map[string]any) {
	delete(act, "Type")
	delete(act, "TypeProperties")
	act["type"] = typ
	act["typeProperties"] = tp
}

// Branches lists the child activity lists of a container activity in a fixed order.
func Branches(act map[string]any) []Branch {
	tp := TypeProperties(act)
	if tp == nil {
		return nil
	}
	var out []Branch
	add := func(key string, items []any) {
		if items != nil {
			out = append(out, Branch{Key: key, Activities: probe.Objects(items)})
		}
	}
	switch strings.ToLower(Type(act)) {
	case "foreach", "until":
		add("activities", probe.Slice(tp, "activities"))
	case "ifcondition":
		add("ifTrueActivities", probe.Slice(tp, "ifTrueActivities"))
		add("ifFalseActivities", probe.Slice(tp, "ifFalseActivities"))
	case "switch":
		for i, c := range probe.Objects(probe.Slice(tp, "cases")) {
			add("cases/"+strconv.Itoa(i)+"/activities", probe.Slice(c, "activities"))
		}
		add("defaultActivities", probe.Slice(tp, "defaultActivities"))
	default:
		// Unknown containers still nest under "activities".
		add("activities", probe.Slice(tp, "activities"))
	}
	return out
}

// IsContainer reports whether act holds child activities.
func IsContainer(act map[string]any) bool {
	return len(Branches(act)) > 0
}

// Visit calls fn for every activity, depth-first, parents before children.
// path holds the names of the enclosing container activities and the activity itself.
func Visit(acts []map[string]any, fn func(path []string, act map[string]any)) {
	visit(nil, acts, fn)
}

func visit(parent []string, acts []map[string]any, fn func([]string, map[string]any)) {
	for _, act := range acts {
		path := append(append([]string(nil), parent...), Name(act))
		fn(path, act)
		for _, b := range Branches(act) {
			visit(path, b.Activities, fn)
		}
	}
}

// JoinPath renders an activity path as "Outer/Inner".
func JoinPath(path []string) string {
	return strings.Join(path, "/")
}
