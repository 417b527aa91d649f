package transform

import (
	"strings"

	"factorylift/internal/probe"
	"factorylift/internal/resolver"
)

// boundDataset is a dataset reference rewritten into inline settings.
type boundDataset struct {
	Name          string
	LinkedService string
	Entry         TypeEntry
	// Known is false when the type table had no entry for the dataset type.
	Known      bool
	Settings   map[string]any
	Connection string
}

// inlineDataset looks up the referenced dataset, substitutes the caller's
// parameter values into its body and resolves its connection. A missing
// dataset, type or linked service yields a RequiredReferenceError; callers
// decide whether that fails the pipeline.
func (t *Transformer) inlineDataset(sc *Scope, ref any, role resolver.Role) (*boundDataset, error) {
	name := probe.RefName(ref)
	if name == "" {
		return nil, requiredf(sc, string(role)+" dataset", "activity has no dataset reference")
	}
	ds, ok := t.catalog.Dataset(name)
	if !ok {
		return nil, requiredf(sc, "dataset "+name, "dataset definition not found in the export")
	}
	def := ds.Definition
	dsType := probe.String(def, "type")
	if dsType == "" {
		return nil, requiredf(sc, "dataset "+name, "dataset has no type, so no destination type mapping exists")
	}
	lsRef, _, _ := probe.First(def, "linkedServiceName")
	lsName := probe.RefName(lsRef)
	if lsName == "" {
		return nil, requiredf(sc, "dataset "+name, "dataset names no linked service")
	}
	if _, ok := t.catalog.LinkedService(lsName); !ok {
		return nil, requiredf(sc, "linked service "+lsName, "linked service definition not found in the export")
	}

	entry, known := t.types.Lookup(dsType)
	if !known {
		sc.Warn("dataset type %q has no mapping entry; using %q with derived source and sink types", dsType, entry.Dataset)
	}

	var supplied map[string]any
	if m, ok := ref.(map[string]any); ok {
		supplied = probe.Map(m, "parameters")
	}
	params := EffectiveParameters(probe.Map(def, "parameters"), supplied)

	tp := deepCopyMap(probe.MapOrEmpty(def, "typeProperties"))
	if entry.Tabular {
		splitTableName(tp)
	}
	substituted, missing := Substitute(tp, params)
	for _, p := range missing {
		sc.Warn("dataset %q parameter %q has no value and no default; expression left in place", name, p)
	}

	settings := map[string]any{
		"type":           entry.Dataset,
		"typeProperties": substituted,
		"annotations":    []any{},
	}
	if ann := probe.Slice(def, "annotations"); ann != nil {
		settings["annotations"] = deepCopySlice(ann)
	}
	if schema := probe.Slice(def, "schema", "structure"); schema != nil {
		settings["schema"] = deepCopySlice(schema)
	}

	conn := t.resolveConnection(sc, lsName, role)
	if conn != "" {
		settings["externalReferences"] = map[string]any{"connection": conn}
	}
	return &boundDataset{
		Name:          name,
		LinkedService: lsName,
		Entry:         entry,
		Known:         known,
		Settings:      settings,
		Connection:    conn,
	}, nil
}

// splitTableName turns the legacy "tableName": "[dbo].[Orders]" into separate
// schema and table fields. Expressions move to "table" unchanged.
func splitTableName(tp map[string]any) {
	raw, ok := tp["tableName"]
	if !ok {
		return
	}
	delete(tp, "tableName")
	if _, hasTable := tp["table"]; hasTable {
		return
	}
	s, isString := raw.(string)
	if !isString || strings.HasPrefix(s, "@") {
		tp["table"] = raw
		return
	}
	schema, table, found := strings.Cut(s, ".")
	if !found {
		tp["table"] = unbracket(s)
		return
	}
	if _, hasSchema := tp["schema"]; !hasSchema {
		tp["schema"] = unbracket(schema)
	}
	tp["table"] = unbracket(table)
}

func unbracket(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.Trim(s, `"`)
}
