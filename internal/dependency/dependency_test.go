package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorylift/internal/component"
)

func TestParseDeclared(t *testing.T) {
	deps := ParseDeclared([]string{
		"[concat(variables('factoryId'), '/pipelines/Child')]",
		"[concat(variables('workspaceId'), '/linkedServices/Blob Store')]",
		"[concat(variables('factoryId'), '/datasets/DS1')]",
		"[concat(variables('factoryId'), '/triggers/Nightly')]",
		"[concat(variables('factoryId'), '/dataflows/Flow1')]",
		"[resourceId('Microsoft.DataFactory/factories/linkedServices', parameters('factoryName'), 'KeyVault')]",
		"[concat(variables('factoryId'), '/integrationRuntimes/SelfHostedIR')]",
		"[concat(variables('factoryId'), '/pipelines/', parameters('dynamicName'))]",
		"[concat(variables('factoryId'), '/pipelines/Child')]",
	})

	assert.Equal(t, []string{"Child"}, deps.Pipelines)
	assert.Equal(t, []string{"Blob Store", "KeyVault"}, deps.LinkedServices)
	assert.Equal(t, []string{"DS1"}, deps.Datasets)
	assert.Equal(t, []string{"Nightly"}, deps.Triggers)
	assert.Equal(t, []string{"Flow1"}, deps.Dataflows)
	assert.Equal(t, []string{
		"[concat(variables('factoryId'), '/integrationRuntimes/SelfHostedIR')]",
		"[concat(variables('factoryId'), '/pipelines/', parameters('dynamicName'))]",
	}, deps.Unparsed)
}

func TestParseExpression_PlainPath(t *testing.T) {
	kind, name, ok := ParseExpression("factories/F1/pipelines/P2")
	require.True(t, ok)
	assert.Equal(t, component.DepPipeline, kind)
	assert.Equal(t, "P2", name)

	_, _, ok = ParseExpression("[variables('x')]")
	assert.False(t, ok)
}

func ref(name, typ string) map[string]any {
	return map[string]any{"referenceName": name, "type": typ}
}

func TestImplicit_PipelineWalksNestedActivities(t *testing.T) {
	c := &component.Component{
		Name: "P1",
		Kind: component.KindPipeline,
		Pipeline: &component.PipelineBody{
			Activities: []map[string]any{
				{
					"name":    "Copy1",
					"type":    "Copy",
					"inputs":  []any{ref("SrcDS", "DatasetReference")},
					"outputs": []any{ref("DstDS", "DatasetReference")},
					"typeProperties": map[string]any{
						"stagingSettings": map[string]any{"linkedServiceName": ref("Staging", "LinkedServiceReference")},
					},
				},
				{
					"name": "Loop",
					"type": "ForEach",
					"typeProperties": map[string]any{
						"activities": []any{
							map[string]any{
								"name":              "Batch",
								"type":              "Custom",
								"linkedServiceName": ref("BatchLS", "LinkedServiceReference"),
								"typeProperties": map[string]any{
									"resourceLinkedService": ref("StorageLS", "LinkedServiceReference"),
									"referenceObjects": map[string]any{
										"linkedServices": []any{ref("ExtraLS", "LinkedServiceReference")},
										"datasets":       []any{ref("RefDS", "DatasetReference")},
									},
								},
							},
							map[string]any{
								"name":           "Run",
								"type":           "ExecutePipeline",
								"typeProperties": map[string]any{"pipeline": ref("Child", "PipelineReference")},
							},
						},
					},
				},
			},
		},
	}

	deps := Implicit(c)

	type key struct {
		kind     component.Kind
		name     string
		activity string
	}
	var got []key
	for _, d := range deps {
		got = append(got, key{d.Kind, d.Name, d.Activity})
	}
	assert.ElementsMatch(t, []key{
		{component.KindDataset, "SrcDS", "Copy1"},
		{component.KindDataset, "DstDS", "Copy1"},
		{component.KindLinkedService, "Staging", "Copy1"},
		{component.KindLinkedService, "BatchLS", "Loop/Batch"},
		{component.KindLinkedService, "StorageLS", "Loop/Batch"},
		{component.KindLinkedService, "ExtraLS", "Loop/Batch"},
		{component.KindDataset, "RefDS", "Loop/Batch"},
		{component.KindPipeline, "Child", "Loop/Run"},
	}, got)

	for _, d := range deps {
		if d.Name == "SrcDS" {
			assert.Equal(t, "activities/Copy1/inputs/0", d.Location)
		}
	}
}

func TestImplicit_TriggerAndDataset(t *testing.T) {
	trigger := &component.Component{
		Name: "Nightly",
		Kind: component.KindTrigger,
		Definition: map[string]any{
			"type": "ScheduleTrigger",
			"pipelines": []any{
				map[string]any{"pipelineReference": ref("Missing", "PipelineReference")},
				map[string]any{"pipelineReference": ref("P1", "PipelineReference")},
			},
		},
	}
	deps := Implicit(trigger)
	require.Len(t, deps, 2)
	assert.Equal(t, component.KindPipeline, deps[0].Kind)
	assert.Equal(t, "Missing", deps[0].Name)
	assert.Equal(t, "pipelines/0/pipelineReference", deps[0].Location)

	legacy := &component.Component{
		Name:       "OldDS",
		Kind:       component.KindDataset,
		Definition: map[string]any{"linkedServiceName": "LegacyLS"},
	}
	deps = Implicit(legacy)
	require.Len(t, deps, 1)
	assert.Equal(t, component.ImplicitDependency{Kind: component.KindLinkedService, Name: "LegacyLS", Location: "linkedServiceName"}, deps[0])
}

func TestExtract_FillsBoth(t *testing.T) {
	c := &component.Component{
		Name:       "DS1",
		Kind:       component.KindDataset,
		Definition: map[string]any{"linkedServiceName": ref("LS1", "LinkedServiceReference")},
		DependsOn:  []string{"[concat(variables('factoryId'), '/linkedServices/LS1')]"},
	}
	Extract(c)
	assert.Equal(t, []string{"LS1"}, c.Declared.LinkedServices)
	require.Len(t, c.Implicit, 1)
	assert.Equal(t, "LS1", c.Implicit[0].Name)
}
