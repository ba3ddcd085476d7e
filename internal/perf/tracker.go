package perf

import (
	"log/slog"
	"sync"
)

// Default minimum sample sizes.
const (
	DefaultDocumentMinSampleSize = 100
	DefaultSpanMinSampleSize     = 25
)

// TrackerOptions configure a Tracker.
type TrackerOptions struct {
	DocumentMinSampleSize int
	SpanMinSampleSize     int
	Logger                *slog.Logger
}

// Tracker owns the document and span queues. It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	ids       *IDTable
	document  *Queue
	span      *Queue
	builtIn   map[string]bool
	latest    [2][]PerformanceInfo // indexed by forSpan
	listeners []func(forSpan bool)
	logger    *slog.Logger
}

// NewTracker creates a tracker. Zero sample sizes use the defaults.
func NewTracker(opts TrackerOptions) *Tracker {
	if opts.DocumentMinSampleSize <= 0 {
		opts.DocumentMinSampleSize = DefaultDocumentMinSampleSize
	}
	if opts.SpanMinSampleSize <= 0 {
		opts.SpanMinSampleSize = DefaultSpanMinSampleSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	ids := NewIDTable()
	return &Tracker{
		ids:      ids,
		document: NewQueue(opts.DocumentMinSampleSize, ids),
		span:     NewQueue(opts.SpanMinSampleSize, ids),
		builtIn:  make(map[string]bool),
		logger:   opts.Logger,
	}
}

func (t *Tracker) queue(forSpan bool) *Queue {
	if forSpan {
		return t.span
	}
	return t.document
}

func index(forSpan bool) int {
	if forSpan {
		return 1
	}
	return 0
}

// AddSnapshot records one request's timings and notifies listeners.
func (t *Tracker) AddSnapshot(timings []AnalyzerTiming, unitCount int, forSpan bool) {
	if len(timings) == 0 {
		return
	}

	t.mu.Lock()
	for _, timing := range timings {
		t.builtIn[timing.AnalyzerID] = timing.BuiltIn
	}
	t.queue(forSpan).Add(timings, unitCount)
	listeners := append([]func(bool){}, t.listeners...)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(forSpan)
	}
}

// OnSnapshotAdded registers fn to run after every recorded snapshot,
// outside the tracker lock.
func (t *Tracker) OnSnapshotAdded(fn func(forSpan bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// PerformanceData returns fresh statistics, or nil when not enough samples
// were added since the last call. Fresh statistics become the latest.
func (t *Tracker) PerformanceData(forSpan bool) []PerformanceInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	data := t.queue(forSpan).PerformanceData()
	if data == nil {
		return nil
	}
	for i := range data {
		data[i].BuiltIn = t.builtIn[data[i].AnalyzerID]
	}
	t.latest[index(forSpan)] = data
	return append([]PerformanceInfo(nil), data...)
}

// Latest returns the most recent statistics without consuming samples.
func (t *Tracker) Latest(forSpan bool) []PerformanceInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]PerformanceInfo(nil), t.latest[index(forSpan)]...)
}

// IsBuiltIn reports whether the analyzer was last seen as built-in.
func (t *Tracker) IsBuiltIn(analyzerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.builtIn[analyzerID]
}

// SnapshotCount returns the number of snapshots held by a queue.
func (t *Tracker) SnapshotCount(forSpan bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue(forSpan).Count()
}
