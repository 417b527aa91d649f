package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisit_NestedContainers(t *testing.T) {
	acts := []map[string]any{
		{
			"name": "Loop",
			"type": "ForEach",
			"typeProperties": map[string]any{
				"activities": []any{
					map[string]any{
						"name": "Check",
						"type": "IfCondition",
						"typeProperties": map[string]any{
							"ifTrueActivities":  []any{map[string]any{"name": "CopyA", "type": "Copy"}},
							"ifFalseActivities": []any{map[string]any{"name": "WaitB", "type": "Wait"}},
						},
					},
				},
			},
		},
		{
			"name": "Route",
			"type": "Switch",
			"typeProperties": map[string]any{
				"cases": []any{
					map[string]any{"value": "a", "activities": []any{map[string]any{"name": "RunA", "type": "ExecutePipeline"}}},
				},
				"defaultActivities": []any{map[string]any{"name": "Fallback", "type": "Fail"}},
			},
		},
	}

	var seen []string
	Visit(acts, func(path []string, _ map[string]any) {
		seen = append(seen, JoinPath(path))
	})

	assert.Equal(t, []string{
		"Loop",
		"Loop/Check",
		"Loop/Check/CopyA",
		"Loop/Check/WaitB",
		"Route",
		"Route/RunA",
		"Route/Fallback",
	}, seen)
}

func TestBranches_Switch(t *testing.T) {
	act := map[string]any{
		"type": "Switch",
		"typeProperties": map[string]any{
			"cases": []any{
				map[string]any{"activities": []any{}},
				map[string]any{"activities": []any{map[string]any{"name": "x"}}},
			},
		},
	}
	b := Branches(act)
	assert.Len(t, b, 2)
	assert.Equal(t, "cases/1/activities", b[1].Key)
	assert.True(t, IsContainer(act))
	assert.False(t, IsContainer(map[string]any{"type": "Wait"}))
}
