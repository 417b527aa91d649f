package walker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferences_FindsNestedAndArrayReferences(t *testing.T) {
	body := map[string]any{
		"linkedServiceName": map[string]any{"referenceName": "LS1", "type": "LinkedServiceReference"},
		"typeProperties": map[string]any{
			"resourceLinkedService": map[string]any{"referenceName": "LS2", "type": "LinkedServiceReference"},
			"referenceObjects": map[string]any{
				"linkedServices": []any{
					map[string]any{"referenceName": "LS3", "type": "LinkedServiceReference"},
				},
			},
		},
	}

	refs := References(body)
	require.Len(t, refs, 3)
	assert.Equal(t, "linkedServiceName", refs[0].Path)
	assert.Equal(t, "LS1", refs[0].Value.Name)
	assert.Equal(t, "typeProperties/referenceObjects/linkedServices/0", refs[1].Path)
	assert.Equal(t, "LS3", refs[1].Value.Name)
	assert.Equal(t, "typeProperties/resourceLinkedService", refs[2].Path)
}

func TestReferences_SkipKeys(t *testing.T) {
	body := map[string]any{
		"inputs": []any{map[string]any{"referenceName": "DS1", "type": "DatasetReference"}},
		"activities": []any{
			map[string]any{"inputs": []any{map[string]any{"referenceName": "DS2", "type": "DatasetReference"}}},
		},
	}

	refs := References(body, SkipKeys("activities"))
	require.Len(t, refs, 1)
	assert.Equal(t, "DS1", refs[0].Value.Name)
}

func TestReferenceObject_IgnoresPlainObjects(t *testing.T) {
	_, ok := ReferenceObject(nil, map[string]any{"referenceName": "X", "type": "Expression"})
	assert.False(t, ok)
	_, ok = ReferenceObject(nil, map[string]any{"type": "DatasetReference"})
	assert.False(t, ok)
}

func TestWalk_StopsDescent(t *testing.T) {
	var seen []string
	Walk(map[string]any{"a": map[string]any{"b": 1.0}, "c": 2.0}, func(p Path, _ any) bool {
		seen = append(seen, p.String())
		return p.String() != "a"
	})
	assert.Equal(t, []string{"", "a", "c"}, seen)
}
