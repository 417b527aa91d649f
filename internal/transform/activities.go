package transform

import (
	"errors"
	"strconv"
	"strings"

	"factorylift/internal/activity"
	"factorylift/internal/probe"
	"factorylift/internal/resolver"
)

// transformCopy inlines the source and sink datasets. Copy cannot run
// without both sides, so missing references fail the pipeline.
func transformCopy(t *Transformer, sc *Scope, act map[string]any) (map[string]any, error) {
	inputs := probe.Slice(act, "inputs")
	if len(inputs) == 0 {
		return nil, requiredf(sc, "source dataset", "copy activity has no inputs")
	}
	outputs := probe.Slice(act, "outputs")
	if len(outputs) == 0 {
		return nil, requiredf(sc, "sink dataset", "copy activity has no outputs")
	}
	src, err := t.inlineDataset(sc, inputs[0], resolver.RoleSource)
	if err != nil {
		return nil, err
	}
	dst, err := t.inlineDataset(sc, outputs[0], resolver.RoleSink)
	if err != nil {
		return nil, err
	}
	delete(act, "inputs")
	delete(act, "outputs")

	tp := ensureTypeProperties(act)
	source := probe.MapOrEmpty(tp, "source")
	setSideType(source, src.Known, src.Entry.Source)
	source["datasetSettings"] = src.Settings
	tp["source"] = source

	sink := probe.MapOrEmpty(tp, "sink")
	sinkType := dst.Entry.Sink
	if sinkType == "" {
		sinkType = dst.Entry.Dataset + "Sink"
		sc.Warn("dataset type %q has no known sink type; using %q", dst.Entry.Dataset, sinkType)
	}
	setSideType(sink, dst.Known, sinkType)
	sink["datasetSettings"] = dst.Settings
	tp["sink"] = sink

	if src.Connection == "" {
		t.missingConnection(sc, act, src.LinkedService, resolver.RoleSource)
	}
	if dst.Connection == "" {
		t.missingConnection(sc, act, dst.LinkedService, resolver.RoleSink)
	}
	t.bindStaging(sc, act, tp)
	t.bindLogSettings(sc, tp)
	t.verifyTypes(sc, act, src.Entry.Dataset, dst.Entry.Dataset,
		probe.String(source, "type"), probe.String(sink, "type"))
	return act, nil
}

// setSideType sets the source or sink type from the table. An explicit type
// in the activity survives only when the table had no entry.
func setSideType(side map[string]any, known bool, mapped string) {
	if !known && probe.String(side, "type") != "" {
		return
	}
	side["type"] = mapped
}

// datasetBound handles activities reading one dataset (Lookup, GetMetadata).
// A missing reference deactivates the activity instead of failing the pipeline.
func datasetBound(t *Transformer, sc *Scope, act map[string]any) (map[string]any, error) {
	tp := ensureTypeProperties(act)
	ref, key, _ := probe.First(tp, "dataset")
	ds, err := t.inlineDataset(sc, ref, resolver.RoleDataset)
	if err != nil {
		var rr *RequiredReferenceError
		if !errors.As(err, &rr) {
			return nil, err
		}
		deactivate(act)
		sc.Warn("%s %s; deactivated", rr.Reference, rr.Reason)
		return act, nil
	}
	if key != "" {
		delete(tp, key)
	}
	tp["datasetSettings"] = ds.Settings
	if source := probe.Map(tp, "source"); source != nil {
		setSideType(source, ds.Known, ds.Entry.Source)
	}
	if ds.Connection == "" {
		t.missingConnection(sc, act, ds.LinkedService, resolver.RoleDataset)
	}
	t.verifyTypes(sc, act, ds.Entry.Dataset)
	return act, nil
}

func transformDelete(t *Transformer, sc *Scope, act map[string]any) (map[string]any, error) {
	act, err := datasetBound(t, sc, act)
	if err != nil {
		return nil, err
	}
	tp := ensureTypeProperties(act)
	logs := probe.Map(tp, "logStorageSettings")
	if logs == nil {
		return act, nil
	}
	ls := probe.RefName(logs["linkedServiceName"])
	conn := t.resolveConnection(sc, ls, resolver.RoleLog)
	if conn == "" {
		delete(tp, "logStorageSettings")
		tp["enableLogging"] = false
		sc.Warn("no destination connection for log linked service %q; logging disabled", ls)
		return act, nil
	}
	delete(logs, "linkedServiceName")
	logs["externalReferences"] = map[string]any{"connection": conn}
	return act, nil
}

// transformContainer rewrites every nested activity list in place.
func transformContainer(t *Transformer, sc *Scope, act map[string]any) (map[string]any, error) {
	tp := activity.TypeProperties(act)
	if tp == nil {
		return act, nil
	}
	for _, b := range activity.Branches(act) {
		children, err := t.transformList(sc, b.Activities)
		if err != nil {
			return nil, err
		}
		list := make([]any, len(children))
		for i, c := range children {
			list[i] = c
		}
		setBranch(tp, b.Key, list)
	}
	return act, nil
}

// setBranch assigns list at a branch key such as "ifTrueActivities" or "cases/1/activities".
func setBranch(tp map[string]any, key string, list []any) {
	segs := strings.Split(key, "/")
	var cur any = tp
	for i, seg := range segs {
		last := i == len(segs)-1
		switch node := cur.(type) {
		case map[string]any:
			if last {
				node[seg] = list
				return
			}
			cur = node[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) || last {
				return
			}
			cur = node[idx]
		default:
			return
		}
	}
}

// transformExecutePipeline rewrites the activity into an invoke whose target
// ids stay empty until the target pipeline is deployed.
func transformExecutePipeline(t *Transformer, sc *Scope, act map[string]any) (map[string]any, error) {
	tp := activity.TypeProperties(act)
	ref, _, _ := probe.First(tp, "pipeline")
	target := probe.RefName(ref)
	if target == "" {
		return nil, requiredf(sc, "invoked pipeline", "execute pipeline activity names no target pipeline")
	}
	if _, ok := t.catalog.Pipeline(target); !ok {
		sc.Warn("invoked pipeline %q is not part of the export; the reference stays unresolved", target)
	}

	wait, _, ok := probe.First(tp, "waitOnCompletion")
	if !ok {
		wait = true
	}
	params := deepCopyMap(probe.Map(tp, "parameters"))
	if params == nil {
		params = map[string]any{}
	}
	activity.Retype(act, "InvokePipeline", map[string]any{
		"operationType":    "InvokeFabricPipeline",
		"pipelineId":       "",
		"workspaceId":      "",
		"waitOnCompletion": wait,
		"parameters":       params,
	})
	sc.out.Pending = append(sc.out.Pending, &PendingReference{
		Activity:       sc.ActivityPath(),
		IntendedTarget: target,
	})
	return act, nil
}

// linkedServiceBound swaps an activity-level linked service for a connection reference.
func linkedServiceBound(t *Transformer, sc *Scope, act map[string]any) (map[string]any, error) {
	v, key, ok := probe.First(act, "linkedServiceName")
	if !ok {
		return act, nil
	}
	ls := probe.RefName(v)
	delete(act, key)
	if _, known := t.catalog.LinkedService(ls); !known {
		sc.Warn("linked service %q is not part of the export", ls)
	}
	conn := t.resolveConnection(sc, ls, resolver.RoleLinkedService)
	if conn == "" {
		t.missingConnection(sc, act, ls, resolver.RoleLinkedService)
		return act, nil
	}
	act["externalReferences"] = map[string]any{"connection": conn}
	return act, nil
}

func passthrough(_ *Transformer, _ *Scope, act map[string]any) (map[string]any, error) {
	return act, nil
}

// bindStaging rewrites interim staging storage. Staging cannot be dropped
// silently, so an unmapped staging linked service deactivates the copy.
func (t *Transformer) bindStaging(sc *Scope, act, tp map[string]any) {
	staging := probe.Map(tp, "stagingSettings")
	if staging == nil {
		return
	}
	ls := probe.RefName(staging["linkedServiceName"])
	if ls == "" {
		return
	}
	conn := t.resolveConnection(sc, ls, resolver.RoleStaging)
	if conn == "" {
		t.missingConnection(sc, act, ls, resolver.RoleStaging)
		return
	}
	delete(staging, "linkedServiceName")
	staging["externalReferences"] = map[string]any{"connection": conn}
}

// bindLogSettings rewrites copy log storage, dropping it when unmapped.
func (t *Transformer) bindLogSettings(sc *Scope, tp map[string]any) {
	logs := probe.Map(tp, "logSettings")
	location := probe.Map(logs, "logLocationSettings")
	if location == nil {
		return
	}
	ls := probe.RefName(location["linkedServiceName"])
	conn := t.resolveConnection(sc, ls, resolver.RoleLog)
	if conn == "" {
		delete(tp, "logSettings")
		sc.Warn("no destination connection for log linked service %q; copy logging dropped", ls)
		return
	}
	delete(location, "linkedServiceName")
	location["externalReferences"] = map[string]any{"connection": conn}
}

func (t *Transformer) missingConnection(sc *Scope, act map[string]any, linkedService string, role resolver.Role) {
	deactivate(act)
	sc.Warn("linked service %q (%s) has no destination connection; deactivated until a connection is mapped for it",
		linkedService, role)
}

func ensureTypeProperties(act map[string]any) map[string]any {
	if tp := activity.TypeProperties(act); tp != nil {
		return tp
	}
	tp := map[string]any{}
	act["typeProperties"] = tp
	return tp
}
