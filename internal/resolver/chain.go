package resolver

import (
	"log/slog"

	"factorylift/internal/metrics"
)

// Tier names the mapping source that answered a lookup.
type Tier string

const (
	TierReferenceID  Tier = "reference_id"
	TierActivityName Tier = "activity_name"
	TierBridge       Tier = "bridge"
	TierBridgeFuzzy  Tier = "bridge_fuzzy"
	TierUnresolved   Tier = "unresolved"
)

// Request asks for the destination connection of one linked-service use.
type Request struct {
	LinkedService string
	Pipeline      string
	Activity      string
	Role          Role
}

// Resolution is the outcome of a lookup. ConnectionID is empty when unresolved.
type Resolution struct {
	ConnectionID string
	Tier         Tier
	// MatchedKey is the mapping key or bridge name that matched.
	MatchedKey string
	Similarity float64
}

// Resolved reports whether a connection id was found.
func (r Resolution) Resolved() bool {
	return r.ConnectionID != ""
}

// Stage is one tier of the ordered fallback strategy.
type Stage interface {
	Name() Tier
	Resolve(req Request) (Resolution, bool)
}

type StageResult struct {
	Stage      Tier
	Matched    bool
	Resolution Resolution
}

// Chain runs stages in order; the first match wins.
type Chain struct {
	stages  []Stage
	logger  *slog.Logger
	metrics *metrics.Collector
}

type ChainOption func(*Chain)

func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

func NewChain(stages []Stage, opts ...ChainOption) *Chain {
	c := &Chain{stages: stages, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefaultChain builds the standard tier order over ctx: reference id,
// legacy activity name, bridge by name, fuzzy bridge.
func NewDefaultChain(ctx *Context, threshold float64, cacheSize int, opts ...ChainOption) (*Chain, error) {
	if ctx == nil {
		ctx = NewContext()
	}
	fuzzy, err := NewFuzzyBridgeStage(ctx, threshold, cacheSize)
	if err != nil {
		return nil, err
	}
	return NewChain([]Stage{
		ReferenceIDStage{ctx: ctx},
		ActivityNameStage{ctx: ctx},
		BridgeStage{ctx: ctx},
		fuzzy,
	}, opts...), nil
}

// Resolve returns the first stage's answer, or an unresolved Resolution.
// It never invents an id.
func (c *Chain) Resolve(req Request) Resolution {
	for _, s := range c.stages {
		if res, ok := s.Resolve(req); ok && res.Resolved() {
			res.Tier = s.Name()
			c.metrics.ConnectionResolved(string(res.Tier))
			c.logger.Debug("connection resolved",
				"pipeline", req.Pipeline, "activity", req.Activity, "role", req.Role,
				"linked_service", req.LinkedService, "tier", res.Tier, "connection", res.ConnectionID)
			return res
		}
	}
	c.metrics.ConnectionResolved(string(TierUnresolved))
	return Resolution{Tier: TierUnresolved}
}

// Explain runs every stage and reports each answer, for diagnostics.
func (c *Chain) Explain(req Request) []StageResult {
	out := make([]StageResult, 0, len(c.stages))
	for _, s := range c.stages {
		res, ok := s.Resolve(req)
		if ok {
			res.Tier = s.Name()
		}
		out = append(out, StageResult{Stage: s.Name(), Matched: ok && res.Resolved(), Resolution: res})
	}
	return out
}
