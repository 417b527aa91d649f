package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStage struct {
	name Tier
	fn   func(req Request) (Resolution, bool)
}

func (f fakeStage) Name() Tier { return f.name }
func (f fakeStage) Resolve(req Request) (Resolution, bool) {
	return f.fn(req)
}

func TestChain_FirstMatchWins(t *testing.T) {
	var calls []Tier
	stage := func(name Tier, id string) Stage {
		return fakeStage{name: name, fn: func(Request) (Resolution, bool) {
			calls = append(calls, name)
			return Resolution{ConnectionID: id}, id != ""
		}}
	}
	chain := NewChain([]Stage{stage("a", ""), stage("b", "conn-b"), stage("c", "conn-c")})

	res := chain.Resolve(Request{LinkedService: "LS1"})
	assert.Equal(t, "conn-b", res.ConnectionID)
	assert.Equal(t, Tier("b"), res.Tier)
	assert.Equal(t, []Tier{"a", "b"}, calls)
}

func allSources() *Context {
	ctx := NewContext()
	ctx.Record(ActivityMapping{Pipeline: "P1", Activity: "Copy1", Role: RoleSource, LinkedService: "LS1", ConnectionID: "from-reference"})
	ctx.ByActivityName[ActivityKey("P1", "Copy1")] = "from-legacy"
	ctx.Bridge["LS1"] = ConnectionDescriptor{ID: "from-bridge"}
	return ctx
}

func TestDefaultChain_ReferenceIDHasPriority(t *testing.T) {
	chain, err := NewDefaultChain(allSources(), 0.8, 16)
	require.NoError(t, err)

	res := chain.Resolve(Request{LinkedService: "LS1", Pipeline: "P1", Activity: "Copy1", Role: RoleSource})
	assert.Equal(t, "from-reference", res.ConnectionID)
	assert.Equal(t, TierReferenceID, res.Tier)
}

func TestDefaultChain_RoleDisambiguates(t *testing.T) {
	ctx := NewContext()
	ctx.Record(ActivityMapping{Pipeline: "P1", Activity: "Copy1", Role: RoleSource, LinkedService: "SrcLS", ConnectionID: "src"})
	ctx.Record(ActivityMapping{Pipeline: "P1", Activity: "Copy1", Role: RoleSink, LinkedService: "DstLS", ConnectionID: "dst"})
	chain, err := NewDefaultChain(ctx, 0.8, 16)
	require.NoError(t, err)

	assert.Equal(t, "src", chain.Resolve(Request{LinkedService: "SrcLS", Pipeline: "P1", Activity: "Copy1", Role: RoleSource}).ConnectionID)
	assert.Equal(t, "dst", chain.Resolve(Request{LinkedService: "DstLS", Pipeline: "P1", Activity: "Copy1", Role: RoleSink}).ConnectionID)
}

func TestDefaultChain_FallbackOrder(t *testing.T) {
	ctx := allSources()
	chain, err := NewDefaultChain(ctx, 0.8, 16)
	require.NoError(t, err)

	t.Run("legacy when role key missing", func(t *testing.T) {
		res := chain.Resolve(Request{LinkedService: "LS1", Pipeline: "P1", Activity: "Copy1", Role: RoleSink})
		assert.Equal(t, "from-legacy", res.ConnectionID)
		assert.Equal(t, TierActivityName, res.Tier)
	})

	t.Run("pipeline table scan by linked service", func(t *testing.T) {
		res := chain.Resolve(Request{LinkedService: "LS1", Pipeline: "P1", Activity: "Lookup9", Role: RoleDataset})
		assert.Equal(t, "from-reference", res.ConnectionID)
		assert.Equal(t, TierBridge, res.Tier)
	})

	t.Run("bridge by exact name", func(t *testing.T) {
		res := chain.Resolve(Request{LinkedService: "LS1", Pipeline: "Other", Activity: "A", Role: RoleDataset})
		assert.Equal(t, "from-bridge", res.ConnectionID)
		assert.Equal(t, TierBridge, res.Tier)
	})
}

func TestDefaultChain_FuzzyBridge(t *testing.T) {
	ctx := NewContext()
	ctx.Bridge["AzureSqlSales"] = ConnectionDescriptor{ID: "sql-conn"}
	ctx.Bridge["BlobArchive"] = ConnectionDescriptor{ID: "blob-conn"}
	chain, err := NewDefaultChain(ctx, 0.8, 16)
	require.NoError(t, err)

	res := chain.Resolve(Request{LinkedService: "AzureSqlSales2", Pipeline: "P", Activity: "A"})
	assert.Equal(t, "sql-conn", res.ConnectionID)
	assert.Equal(t, TierBridgeFuzzy, res.Tier)
	assert.Equal(t, "AzureSqlSales", res.MatchedKey)
	assert.GreaterOrEqual(t, res.Similarity, 0.8)

	res = chain.Resolve(Request{LinkedService: "Cosmos", Pipeline: "P", Activity: "A"})
	assert.False(t, res.Resolved())
	assert.Equal(t, TierUnresolved, res.Tier)
	assert.Empty(t, res.ConnectionID)
}

func TestNewDefaultChain_RejectsBadThreshold(t *testing.T) {
	_, err := NewDefaultChain(NewContext(), 1.5, 16)
	assert.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("LS_Blob", "ls_blob"))
	assert.InDelta(t, 0.9, Similarity("abcdefghij", "abcdefghik"), 1e-9)
	assert.InDelta(t, 0.0, Similarity("abc", "xyz"), 1e-9)
}

func TestExplain_ReportsEveryTier(t *testing.T) {
	chain, err := NewDefaultChain(allSources(), 0.8, 16)
	require.NoError(t, err)

	results := chain.Explain(Request{LinkedService: "LS1", Pipeline: "P1", Activity: "Copy1", Role: RoleSource})
	require.Len(t, results, 4)
	assert.True(t, results[0].Matched)
	assert.True(t, results[1].Matched)
	assert.Equal(t, "from-legacy", results[1].Resolution.ConnectionID)
	assert.True(t, results[2].Matched)
	assert.True(t, results[3].Matched)
}

func TestParseActivityMapping(t *testing.T) {
	t.Run("reference id records", func(t *testing.T) {
		ctx, err := ParseActivityMapping([]byte(`{"mappings": [
			{"pipeline": "P1", "activity": "Copy1", "role": "sink", "linkedService": "LS2", "connectionId": "c2"},
			{"pipeline": "P1", "activity": "Copy1", "role": "source", "linkedService": "LS1", "connectionId": ""}
		]}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"P1_Copy1_sink": "c2"}, ctx.ByReferenceID)
		assert.Len(t, ctx.PipelineTables["P1"], 1)
	})

	t.Run("legacy flat", func(t *testing.T) {
		ctx, err := ParseActivityMapping([]byte(`{"P1_Copy1": "c1", "P1_Lookup": {"connectionId": "c3"}}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"P1_Copy1": "c1", "P1_Lookup": "c3"}, ctx.ByActivityName)
	})

	_, err := ParseActivityMapping([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestLoadConnectionConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connections.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"connections": {
		"LS1": {"id": "c1", "displayName": "Sales DB", "type": "SQL"},
		"LS2": "c2",
		"LS3": {"connectionId": "c3"}
	}}`), 0o644))

	bridge, err := LoadConnectionConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ConnectionDescriptor{ID: "c1", DisplayName: "Sales DB", Type: "SQL"}, bridge["LS1"])
	assert.Equal(t, "c2", bridge["LS2"].ID)
	assert.Equal(t, "c3", bridge["LS3"].ID)
}

func TestContext_Merge(t *testing.T) {
	a := NewContext()
	a.Bridge["LS1"] = ConnectionDescriptor{ID: "old"}
	b := NewContext()
	b.Bridge["LS1"] = ConnectionDescriptor{ID: "new"}
	b.ByActivityName["P_A"] = "x"
	a.Merge(b)
	assert.Equal(t, "new", a.Bridge["LS1"].ID)
	assert.Equal(t, "x", a.ByActivityName["P_A"])
}
