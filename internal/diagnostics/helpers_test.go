package diagnostics

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"diaghost/internal/analysis"
	"diaghost/internal/analyzers"
	"diaghost/internal/perf"
	"diaghost/internal/workspace"
)

var (
	hostRef    = workspace.AnalyzerReference{Kind: workspace.KindBuiltin, Name: "host"}
	projectRef = workspace.AnalyzerReference{Kind: workspace.KindRules, Path: "rules.yaml"}
)

// countingProvider compiles without parsing and resolves references from a
// fixed table. gate, when set, holds every Compile until it is closed.
type countingProvider struct {
	compiles atomic.Int32
	byKey    map[string][]analyzers.Analyzer
	gate     chan struct{}
}

func newCountingProvider(host, project []analyzers.Analyzer) *countingProvider {
	return &countingProvider{byKey: map[string][]analyzers.Analyzer{
		hostRef.Key():    host,
		projectRef.Key(): project,
	}}
}

func (p *countingProvider) Compile(ctx context.Context, project *workspace.Project) (*analysis.Compilation, error) {
	p.compiles.Add(1)
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	trees := make(map[string]*analyzers.SyntaxTree, len(project.Documents))
	for _, d := range project.Documents {
		trees[d.ID] = analyzers.NewSyntaxTree(d, nil)
	}
	return analysis.NewCompilation(project, trees), nil
}

func (p *countingProvider) ResolveReference(_ context.Context, ref workspace.AnalyzerReference, _ string) ([]analyzers.Analyzer, error) {
	return p.byKey[ref.Key()], nil
}

// newSolution builds a fresh snapshot instance. Equal text yields equal
// checksums across calls.
func newSolution(t *testing.T, text string) *workspace.Solution {
	t.Helper()
	p := workspace.NewProject("core", "text", "/ws/core", []workspace.AnalyzerReference{projectRef})
	p.AddDocument("core/a.txt", "/ws/core/a.txt", text)
	p.AddDocument("core/b.txt", "/ws/core/b.txt", "second\n")
	return workspace.NewSolution("/ws", []workspace.AnalyzerReference{hostRef}, p)
}

func documentRequest(s *workspace.Solution, ids ...string) Request {
	p := s.Project("core")
	return Request{
		Project:            p,
		Document:           p.Document("core/a.txt"),
		Checksum:           s.Checksum,
		ProjectAnalyzerIDs: ids,
	}
}

// reportingAnalyzer reports one diagnostic at the start of every document
// pass and counts invocations.
type reportingAnalyzer struct {
	id    string
	calls atomic.Int32
}

func (r *reportingAnalyzer) ID() string { return r.id }

func (r *reportingAnalyzer) Analyze(_ context.Context, pass *analyzers.Pass) error {
	r.calls.Add(1)
	if pass.Document != nil {
		pass.ReportAt(r.id, analyzers.SeverityWarning, analyzers.TextSpan{Start: 0, End: 1}, "found")
	}
	return nil
}

// blockingAnalyzer runs semantic passes only. Each attempt signals started
// and blocks until release is closed or the pass is cancelled.
type blockingAnalyzer struct {
	id       string
	started  chan struct{}
	release  chan struct{}
	attempts atomic.Int32
}

func newBlockingAnalyzer(id string) *blockingAnalyzer {
	return &blockingAnalyzer{id: id, started: make(chan struct{}, 32), release: make(chan struct{})}
}

func (b *blockingAnalyzer) ID() string { return b.id }

func (b *blockingAnalyzer) Kinds() []analyzers.AnalysisKind {
	return []analyzers.AnalysisKind{analyzers.Semantic}
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, pass *analyzers.Pass) error {
	b.attempts.Add(1)
	b.started <- struct{}{}
	select {
	case <-b.release:
		pass.ReportAt(b.id, analyzers.SeverityInfo, analyzers.TextSpan{Start: 0, End: 1}, "done")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitStarted(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for analyzer to start")
	}
}

type outcome struct {
	res *SerializableResults
	err error
}

func computeAsync(c *Computer, ctx context.Context, req Request) <-chan outcome {
	ch := make(chan outcome, 1)
	go func() {
		res, err := c.ComputeDiagnostics(ctx, req)
		ch <- outcome{res, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for computation")
		return outcome{}
	}
}

type snapshotCall struct {
	timings   []perf.AnalyzerTiming
	unitCount int
	forSpan   bool
}

// recordingSink is a TelemetrySink that keeps every snapshot.
type recordingSink struct {
	active bool
	mu     sync.Mutex
	calls  []snapshotCall
}

func (s *recordingSink) HasActiveSession() bool { return s.active }

func (s *recordingSink) AddSnapshot(timings []perf.AnalyzerTiming, unitCount int, forSpan bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, snapshotCall{timings, unitCount, forSpan})
}

func (s *recordingSink) snapshots() []snapshotCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]snapshotCall(nil), s.calls...)
}
