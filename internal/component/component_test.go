package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		kind    Kind
		subType string
		want    Status
	}{
		{KindPipeline, "", StatusSupported},
		{KindDataflow, "MappingDataFlow", StatusUnsupported},
		{KindDataflow, "", StatusUnsupported},
		{KindTrigger, "ScheduleTrigger", StatusPartiallySupported},
		{KindTrigger, "TumblingWindowTrigger", StatusUnsupported},
		{KindIntegrationRuntime, "SelfHosted", StatusPartiallySupported},
		{KindIntegrationRuntime, "Managed", StatusSupported},
		{KindCustomActivity, "", StatusUnsupported},
		{Kind("bogus"), "", StatusUnsupported},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.subType, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.kind, tt.subType).Status)
		})
	}
}

func TestComponent_WarningsAndDowngrade(t *testing.T) {
	c := &Component{Name: "P1", Kind: KindPipeline}
	c.ApplyRule()
	assert.Equal(t, StatusSupported, c.Status)

	c.AddWarning("activity %q is not supported", "Flow1")
	c.AddWarning("activity %q is not supported", "Flow1")
	assert.Equal(t, []string{`activity "Flow1" is not supported`}, c.Warnings)

	c.Downgrade(StatusPartiallySupported)
	c.Downgrade(StatusSupported)
	assert.Equal(t, StatusPartiallySupported, c.Status)
}

func TestParseID(t *testing.T) {
	kind, name, err := ParseID("pipeline:Load:Daily")
	require.NoError(t, err)
	assert.Equal(t, KindPipeline, kind)
	assert.Equal(t, "Load:Daily", name)

	_, _, err = ParseID("nokind")
	assert.Error(t, err)
}

func TestDependencies_AddDedupes(t *testing.T) {
	var d Dependencies
	d.Add(DepPipeline, "P2")
	d.Add(DepPipeline, "P2")
	d.Add(DepLinkedService, "LS1")
	d.Add(DepUnparsed, "[variables('x')]")
	d.Add(DepDataset, "")

	assert.Equal(t, []string{"P2"}, d.Pipelines)
	assert.Equal(t, []string{"LS1"}, d.Names(DepLinkedService))
	assert.Equal(t, 3, d.Len())
}

func TestCatalog_FreezeBarrier(t *testing.T) {
	cat := NewCatalog()
	require.NoError(t, cat.Add(&Component{Name: "DS1", Kind: KindDataset}))
	require.NoError(t, cat.Add(&Component{Name: "LS1", Kind: KindLinkedService}))

	cat.Freeze()
	assert.ErrorIs(t, cat.Add(&Component{Name: "late", Kind: KindDataset}), ErrCatalogFrozen)

	ds, ok := cat.Dataset("DS1")
	require.True(t, ok)
	assert.Equal(t, "DS1", ds.Name)
	_, ok = cat.Dataset("late")
	assert.False(t, ok)
	assert.Equal(t, 2, cat.Len())
}

func TestCatalog_DuplicateNameRejected(t *testing.T) {
	cat := NewCatalog()
	require.NoError(t, cat.Add(&Component{Name: "LS1", Kind: KindLinkedService, SubType: "AzureBlobStorage"}))
	require.NoError(t, cat.Add(&Component{Name: "LS1", Kind: KindDataset}), "names are unique per kind only")

	err := cat.Add(&Component{Name: "LS1", Kind: KindLinkedService, SubType: "Credential/ServicePrincipal"})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, KindLinkedService, dup.Kind)
	assert.Equal(t, "AzureBlobStorage", dup.Existing)

	ls, ok := cat.LinkedService("LS1")
	require.True(t, ok)
	assert.Equal(t, "AzureBlobStorage", ls.SubType)
	assert.Equal(t, 2, cat.Len())
	assert.Len(t, cat.All(), 2)
}
