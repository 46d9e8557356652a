package ranking

import (
	"sort"

	"gopattern/domain/discovery"
)

// Rank scores every pattern, orders them by combined score (ties: smaller p-value, then
// rule key) and keeps the top maxResults. The input slice is not modified.
func Rank(patterns []discovery.ValidatedPattern, maxResults int) []discovery.ValidatedPattern {
	ranked := make([]discovery.ValidatedPattern, len(patterns))
	copy(ranked, patterns)
	for i := range ranked {
		ranked[i].CombinedScore = discovery.CombinedScore(ranked[i].EffectSize, ranked[i].SampleSize)
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		pa, pb := ranked[a], ranked[b]
		if pa.CombinedScore != pb.CombinedScore {
			return pa.CombinedScore > pb.CombinedScore
		}
		if pa.PValue != pb.PValue {
			return pa.PValue < pb.PValue
		}
		return pa.Rule.Key() < pb.Rule.Key()
	})

	if maxResults > 0 && len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	return ranked
}

// CountByKind tallies candidates per kind for run summaries.
func CountByKind(candidates []discovery.Candidate) map[discovery.CandidateKind]int {
	counts := make(map[discovery.CandidateKind]int)
	for _, c := range candidates {
		counts[c.Kind]++
	}
	return counts
}
