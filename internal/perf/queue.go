// Package perf tracks per-analyzer execution time. Queues hold sliding
// windows of normalized timing snapshots; the Tracker owns one queue for
// document requests and one for span requests and turns them into
// statistics and expensive-analyzer reports.
package perf

import (
	"math"
	"sort"
	"sync"
	"time"
)

// AnalyzerTiming is one raw sample: how long an analyzer ran in one request.
type AnalyzerTiming struct {
	AnalyzerID string        `json:"analyzerId"`
	BuiltIn    bool          `json:"builtIn"`
	Elapsed    time.Duration `json:"elapsed"`
}

// PerformanceInfo is aggregated timing for one analyzer, in milliseconds per
// unit of work, relative to the fastest analyzer of each snapshot.
type PerformanceInfo struct {
	AnalyzerID     string  `json:"analyzerId"`
	BuiltIn        bool    `json:"builtIn"`
	Average        float64 `json:"average"`
	AdjustedStdDev float64 `json:"adjustedStdDev"`
	SampleCount    int     `json:"sampleCount"`
}

// IDTable assigns small integer ids to analyzer names. Ids only grow.
type IDTable struct {
	mu   sync.Mutex
	ids  map[string]int
	next int
}

// NewIDTable creates an empty table.
func NewIDTable() *IDTable {
	return &IDTable{ids: make(map[string]int)}
}

// ID returns the id of name, assigning the next one on first use.
func (t *IDTable) ID(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := t.next
	t.ids[name] = id
	t.next++
	return id
}

// Reverse returns an id to name snapshot.
func (t *IDTable) Reverse() map[int]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int]string, len(t.ids))
	for name, id := range t.ids {
		out[id] = name
	}
	return out
}

// Len returns the number of assigned ids.
func (t *IDTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}

// snapshot holds one request's normalized timings keyed by analyzer id.
type snapshot struct {
	values map[int]float64
}

// Queue is a bounded window of snapshots. It is not synchronized; the
// owning Tracker serializes access.
type Queue struct {
	minSampleSize   int
	maxSize         int
	ids             *IDTable
	snapshots       []*snapshot
	next            int // slot reused on overflow, the oldest snapshot
	sinceLastReport int
}

// NewQueue creates a queue holding up to 3×minSampleSize snapshots.
func NewQueue(minSampleSize int, ids *IDTable) *Queue {
	if minSampleSize < 1 {
		minSampleSize = 1
	}
	return &Queue{
		minSampleSize: minSampleSize,
		maxSize:       3 * minSampleSize,
		ids:           ids,
		snapshots:     make([]*snapshot, 0, 3*minSampleSize),
	}
}

// Add records one request's timings. Each elapsed time is made relative to
// the fastest analyzer in timings and divided by unitCount (values below 1
// count as 1). Empty input is ignored.
func (q *Queue) Add(timings []AnalyzerTiming, unitCount int) {
	if len(timings) == 0 {
		return
	}
	if unitCount < 1 {
		unitCount = 1
	}

	fastest := timings[0].Elapsed
	for _, t := range timings[1:] {
		if t.Elapsed < fastest {
			fastest = t.Elapsed
		}
	}

	var s *snapshot
	if len(q.snapshots) < q.maxSize {
		s = &snapshot{values: make(map[int]float64, len(timings))}
		q.snapshots = append(q.snapshots, s)
	} else {
		s = q.snapshots[q.next]
		clear(s.values)
		q.next = (q.next + 1) % q.maxSize
	}

	for _, t := range timings {
		ms := float64(t.Elapsed-fastest) / float64(time.Millisecond)
		s.values[q.ids.ID(t.AnalyzerID)] += ms / float64(unitCount)
	}
	q.sinceLastReport++
}

// Count returns the number of snapshots currently held.
func (q *Queue) Count() int {
	return len(q.snapshots)
}

// PerformanceData returns statistics once minSampleSize snapshots were added
// since the previous report, and nil before that. Only analyzers present in
// at least minSampleSize held snapshots are included, slowest first.
// Reporting resets the counter.
func (q *Queue) PerformanceData() []PerformanceInfo {
	if q.sinceLastReport < q.minSampleSize {
		return nil
	}
	q.sinceLastReport = 0

	samples := make(map[int][]float64)
	for _, s := range q.snapshots {
		for id, v := range s.values {
			samples[id] = append(samples[id], v)
		}
	}

	names := q.ids.Reverse()
	out := make([]PerformanceInfo, 0, len(samples))
	for id, values := range samples {
		if len(values) < q.minSampleSize {
			continue
		}
		mean, stddev := meanStdDev(values)
		out = append(out, PerformanceInfo{
			AnalyzerID:     names[id],
			Average:        mean,
			AdjustedStdDev: stddev / math.Sqrt(float64(len(values))),
			SampleCount:    len(values),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Average != out[j].Average {
			return out[i].Average > out[j].Average
		}
		return out[i].AnalyzerID < out[j].AnalyzerID
	})
	return out
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (mean, stddev float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
