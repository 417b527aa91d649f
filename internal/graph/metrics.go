package graph

func (g *Graph) GapReasonCounts() map[GapReason]int {
	counts := make(map[GapReason]int)
	if g == nil {
		return counts
	}
	for _, gap := range g.Gaps {
		reason := gap.Reason
		if reason == "" {
			reason = ReasonNotFound
		}
		counts[reason]++
	}
	return counts
}

// RelationCounts tallies edges by relation kind.
func (g *Graph) RelationCounts() map[RelationKind]int {
	counts := make(map[RelationKind]int)
	if g == nil {
		return counts
	}
	for _, e := range g.Edges {
		counts[e.Relation]++
	}
	return counts
}
