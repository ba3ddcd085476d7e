package perf

import (
	"math"
	"sort"
)

// maxLocalOutlierFactor caps infinite factors so reports stay encodable.
const maxLocalOutlierFactor = 1e9

// ReportOptions select expensive analyzers from fresh statistics.
type ReportOptions struct {
	AverageThreshold float64 // ms
	StddevThreshold  float64 // ms
	MinLOF           float64
	MinAnalyzers     int
}

// DefaultReportOptions returns the production thresholds.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{
		AverageThreshold: 100,
		StddevThreshold:  100,
		MinLOF:           20,
		MinAnalyzers:     5,
	}
}

// ExpensiveAnalyzerInfo is one row of an expensive-analyzer report.
type ExpensiveAnalyzerInfo struct {
	PerformanceInfo
	LocalOutlierFactor float64 `json:"localOutlierFactor"`
}

// GenerateReport consumes fresh statistics and returns analyzers that are
// both slow and consistently slow compared to their peers, by descending
// local outlier factor. It returns nil when statistics are not fresh or
// fewer than MinAnalyzers analyzers have enough samples.
func (t *Tracker) GenerateReport(forSpan bool, opts ReportOptions) []ExpensiveAnalyzerInfo {
	data := t.PerformanceData(forSpan)
	if len(data) == 0 || len(data) < opts.MinAnalyzers {
		return nil
	}

	averages := make([]float64, len(data))
	for i, d := range data {
		averages[i] = d.Average
	}
	lof := LocalOutlierFactors(averages, int(math.Ceil(float64(len(data))*2/3)))

	var out []ExpensiveAnalyzerInfo
	for i, d := range data {
		if d.Average < opts.AverageThreshold || d.AdjustedStdDev > opts.StddevThreshold || lof[i] < opts.MinLOF {
			continue
		}
		out = append(out, ExpensiveAnalyzerInfo{PerformanceInfo: d, LocalOutlierFactor: lof[i]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LocalOutlierFactor > out[j].LocalOutlierFactor
	})

	if len(out) > 0 {
		t.logger.Debug("Expensive analyzers found", "forSpan", forSpan, "count", len(out), "analyzers", len(data))
	}
	return out
}

// LocalOutlierFactors computes the local outlier factor of every value with
// k nearest neighbours. Values in a dense cluster score about 1; isolated
// values score higher.
func LocalOutlierFactors(values []float64, k int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n < 2 {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	if k < 1 {
		k = 1
	}
	if k > n-1 {
		k = n - 1
	}

	// neighbours[i] holds every other point within the k-distance of i.
	kdist := make([]float64, n)
	neighbours := make([][]int, n)
	for i := range values {
		dists := make([]float64, 0, n-1)
		for j := range values {
			if j != i {
				dists = append(dists, math.Abs(values[i]-values[j]))
			}
		}
		sort.Float64s(dists)
		kdist[i] = dists[k-1]
		for j := range values {
			if j != i && math.Abs(values[i]-values[j]) <= kdist[i] {
				neighbours[i] = append(neighbours[i], j)
			}
		}
	}

	lrd := make([]float64, n)
	for i := range values {
		var sum float64
		for _, j := range neighbours[i] {
			sum += math.Max(kdist[j], math.Abs(values[i]-values[j]))
		}
		mean := sum / float64(len(neighbours[i]))
		if mean == 0 {
			lrd[i] = math.Inf(1)
		} else {
			lrd[i] = 1 / mean
		}
	}

	for i := range values {
		if math.IsInf(lrd[i], 1) {
			out[i] = 1
			continue
		}
		var sum float64
		for _, j := range neighbours[i] {
			sum += lrd[j] / lrd[i]
		}
		factor := sum / float64(len(neighbours[i]))
		if math.IsInf(factor, 1) || factor > maxLocalOutlierFactor {
			factor = maxLocalOutlierFactor
		}
		out[i] = factor
	}
	return out
}
