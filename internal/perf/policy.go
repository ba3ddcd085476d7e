package perf

import "sort"

// CandidatePolicy decides which analyzers of a request should be moved to a
// lower-priority bucket.
type CandidatePolicy interface {
	Select(projectID string, stats []PerformanceInfo, analyzerIDs []string) map[string]struct{}
}

// ThresholdPolicy selects requested analyzers whose latest average is at
// least AverageThreshold ms, slowest first, keeping at most MaxCandidates
// (0 means no limit).
type ThresholdPolicy struct {
	AverageThreshold float64
	MaxCandidates    int
}

// Select implements CandidatePolicy.
func (p ThresholdPolicy) Select(_ string, stats []PerformanceInfo, analyzerIDs []string) map[string]struct{} {
	averages := make(map[string]float64, len(stats))
	for _, s := range stats {
		averages[s.AnalyzerID] = s.Average
	}

	type candidate struct {
		id  string
		avg float64
	}
	var candidates []candidate
	seen := make(map[string]bool, len(analyzerIDs))
	for _, id := range analyzerIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if avg, ok := averages[id]; ok && avg >= p.AverageThreshold {
			candidates = append(candidates, candidate{id: id, avg: avg})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].avg != candidates[j].avg {
			return candidates[i].avg > candidates[j].avg
		}
		return candidates[i].id < candidates[j].id
	})
	if p.MaxCandidates > 0 && len(candidates) > p.MaxCandidates {
		candidates = candidates[:p.MaxCandidates]
	}

	out := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		out[c.id] = struct{}{}
	}
	return out
}
