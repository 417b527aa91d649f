package extractor

import (
	"strings"

	"factorylift/internal/component"
)

// dialectSpec captures what differs between the two export formats.
type dialectSpec struct {
	dialect component.Dialect
	// unsupportedActivities are activity types (lowercase) the destination cannot run.
	unsupportedActivities map[string]string
}

var commonUnsupported = map[string]string{
	"executedataflow":          "data flow execution is not migrated; rebuild the data flow and replace this activity",
	"executewranglingdataflow": "Power Query activities are not migrated; rebuild as a dataflow",
	"executessispackage":       "SSIS package execution has no destination equivalent",
	"custom":                   "custom batch activities have no destination equivalent",
	"hdinsighthive":            "HDInsight activities are not migrated",
	"hdinsightpig":             "HDInsight activities are not migrated",
	"hdinsightmapreduce":       "HDInsight activities are not migrated",
	"hdinsightspark":           "HDInsight activities are not migrated",
	"hdinsightstreaming":       "HDInsight activities are not migrated",
	"azuremlbatchexecution":    "Azure ML Studio (classic) activities are retired and not migrated",
	"azuremlupdateresource":    "Azure ML Studio (classic) activities are retired and not migrated",
	"datalakeanalyticsu-sql":   "U-SQL activities are retired and not migrated",
}

var synapseUnsupported = merge(commonUnsupported, map[string]string{
	"synapsenotebook":        "Synapse notebooks must be migrated separately and rebound to this activity",
	"sparkjob":               "Spark job definitions must be migrated separately and rebound to this activity",
	"sqlpoolstoredprocedure": "dedicated SQL pool stored procedures need a warehouse connection on the destination",
})

var dialects = map[component.Dialect]dialectSpec{
	component.DialectDataFactory: {
		dialect:               component.DialectDataFactory,
		unsupportedActivities: commonUnsupported,
	},
	component.DialectSynapse: {
		dialect:               component.DialectSynapse,
		unsupportedActivities: synapseUnsupported,
	},
	component.DialectUnknown: {
		dialect:               component.DialectUnknown,
		unsupportedActivities: commonUnsupported,
	},
}

func merge(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// DetectDialect infers the export format from a resource type taxonomy string.
func DetectDialect(resourceType string) component.Dialect {
	t := strings.ToLower(resourceType)
	switch {
	case strings.HasPrefix(t, "microsoft.datafactory"):
		return component.DialectDataFactory
	case strings.HasPrefix(t, "microsoft.synapse"):
		return component.DialectSynapse
	}
	return component.DialectUnknown
}

// TypeSuffix returns the normalized last segment of a slash or dot delimited
// taxonomy string: "Microsoft.DataFactory/factories/linkedServices" -> "linkedservices".
func TypeSuffix(resourceType string) string {
	t := strings.TrimSpace(resourceType)
	if i := strings.LastIndexAny(t, "/."); i >= 0 {
		t = t[i+1:]
	}
	return strings.ToLower(t)
}

// UnsupportedActivityReason reports why an activity type cannot be migrated in a dialect.
func UnsupportedActivityReason(d component.Dialect, activityType string) (string, bool) {
	spec, ok := dialects[d]
	if !ok {
		spec = dialects[component.DialectUnknown]
	}
	reason, ok := spec.unsupportedActivities[strings.ToLower(activityType)]
	return reason, ok
}
