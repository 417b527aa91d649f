package resolver

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ReferenceIDStage looks up "{pipeline}_{activity}_{role}".
type ReferenceIDStage struct{ ctx *Context }

func (ReferenceIDStage) Name() Tier { return TierReferenceID }

func (s ReferenceIDStage) Resolve(req Request) (Resolution, bool) {
	if req.Role == "" {
		return Resolution{}, false
	}
	key := ReferenceKey(req.Pipeline, req.Activity, req.Role)
	id, ok := s.ctx.ByReferenceID[key]
	return Resolution{ConnectionID: id, MatchedKey: key}, ok && id != ""
}

// ActivityNameStage looks up the legacy "{pipeline}_{activity}" key.
type ActivityNameStage struct{ ctx *Context }

func (ActivityNameStage) Name() Tier { return TierActivityName }

func (s ActivityNameStage) Resolve(req Request) (Resolution, bool) {
	key := ActivityKey(req.Pipeline, req.Activity)
	id, ok := s.ctx.ByActivityName[key]
	return Resolution{ConnectionID: id, MatchedKey: key}, ok && id != ""
}

// BridgeStage scans the pipeline's recorded mappings for one naming the
// requested linked service, then tries the bridge by exact name.
type BridgeStage struct{ ctx *Context }

func (BridgeStage) Name() Tier { return TierBridge }

func (s BridgeStage) Resolve(req Request) (Resolution, bool) {
	if req.LinkedService == "" {
		return Resolution{}, false
	}
	for _, m := range s.ctx.PipelineTables[req.Pipeline] {
		if m.LinkedService == req.LinkedService && m.ConnectionID != "" {
			return Resolution{ConnectionID: m.ConnectionID, MatchedKey: ReferenceKey(m.Pipeline, m.Activity, m.Role), Similarity: 1}, true
		}
	}
	if d, ok := s.ctx.Bridge[req.LinkedService]; ok && d.ID != "" {
		return Resolution{ConnectionID: d.ID, MatchedKey: req.LinkedService, Similarity: 1}, true
	}
	return Resolution{}, false
}

// FuzzyBridgeStage matches renamed linked services against bridge keys by
// edit-distance ratio. Scores are memoized.
type FuzzyBridgeStage struct {
	ctx       *Context
	threshold float64
	scores    *lru.Cache[string, float64]
}

func NewFuzzyBridgeStage(ctx *Context, threshold float64, cacheSize int) (*FuzzyBridgeStage, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("fuzzy threshold %.2f out of range (0,1]", threshold)
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, float64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create similarity cache: %w", err)
	}
	return &FuzzyBridgeStage{ctx: ctx, threshold: threshold, scores: cache}, nil
}

func (*FuzzyBridgeStage) Name() Tier { return TierBridgeFuzzy }

func (s *FuzzyBridgeStage) Resolve(req Request) (Resolution, bool) {
	if req.LinkedService == "" || len(s.ctx.Bridge) == 0 {
		return Resolution{}, false
	}
	keys := make([]string, 0, len(s.ctx.Bridge))
	for k := range s.ctx.Bridge {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		bestKey   string
		bestScore float64
	)
	for _, k := range keys {
		score := s.similarity(req.LinkedService, k)
		if score > bestScore {
			bestKey, bestScore = k, score
		}
	}
	if bestKey == "" || bestScore < s.threshold {
		return Resolution{}, false
	}
	d := s.ctx.Bridge[bestKey]
	return Resolution{ConnectionID: d.ID, MatchedKey: bestKey, Similarity: bestScore}, d.ID != ""
}

func (s *FuzzyBridgeStage) similarity(a, b string) float64 {
	key := a + "\x00" + b
	if v, ok := s.scores.Get(key); ok {
		return v
	}
	v := Similarity(a, b)
	s.scores.Add(key, v)
	return v
}

// Similarity is 1 - distance/maxLen over case-folded strings.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.Distance(a, b, nil))/float64(maxLen)
}
