package diagnostics

import (
	"context"
	"strings"
	"testing"
	"time"

	"diaghost/internal/analyzers"
	"diaghost/internal/errors"
	"diaghost/internal/perf"
	"diaghost/internal/workspace"
)

func newTestService(t *testing.T, opts ServiceOptions) (*Service, *workspace.Solution, *perf.Tracker) {
	t.Helper()
	host := &reportingAnalyzer{id: "host-a"}
	proj := &reportingAnalyzer{id: "proj-a"}
	prov := newCountingProvider([]analyzers.Analyzer{host}, []analyzers.Analyzer{proj})

	store := workspace.NewStore(4)
	s := newSolution(t, "text\n")
	store.Add(s)

	tracker := perf.NewTracker(perf.TrackerOptions{DocumentMinSampleSize: 1, SpanMinSampleSize: 1})
	computer := NewComputer(NewState(prov, CacheOptions{}), nil, nil)
	return NewService(computer, tracker, store, nil, opts), s, tracker
}

func TestService_Resolve(t *testing.T) {
	svc, s, _ := newTestService(t, ServiceOptions{})
	unknown := strings.Repeat("ab", 32)

	tests := []struct {
		name     string
		query    Query
		wantCode errors.ErrorCode
	}{
		{"current snapshot", Query{ProjectID: "core"}, ""},
		{"by checksum", Query{Checksum: s.Checksum.String(), ProjectID: "core", DocumentID: "core/a.txt"}, ""},
		{"with span", Query{ProjectID: "core", DocumentID: "core/a.txt", Span: &analyzers.TextSpan{Start: 0, End: 4}}, ""},
		{"unknown checksum", Query{Checksum: unknown, ProjectID: "core"}, errors.SnapshotNotFound},
		{"malformed checksum", Query{Checksum: "xyz", ProjectID: "core"}, errors.InvalidRequest},
		{"unknown project", Query{ProjectID: "nope"}, errors.ProjectNotFound},
		{"unknown document", Query{ProjectID: "core", DocumentID: "core/zzz.txt"}, errors.DocumentNotFound},
		{"span without document", Query{ProjectID: "core", Span: &analyzers.TextSpan{Start: 0, End: 1}}, errors.InvalidRequest},
		{"span out of range", Query{ProjectID: "core", DocumentID: "core/a.txt", Span: &analyzers.TextSpan{Start: 0, End: 99}}, errors.InvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := svc.Resolve(tt.query)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Resolve() error = %v", err)
				}
				if req.Project != s.Project("core") || req.Checksum != s.Checksum {
					t.Errorf("Resolve() = %+v", req)
				}
				return
			}
			if got := errors.CodeOf(err); got != tt.wantCode {
				t.Errorf("error code = %v, want %v (err=%v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestService_NoSnapshots(t *testing.T) {
	computer := NewComputer(NewState(newCountingProvider(nil, nil), CacheOptions{}), nil, nil)
	svc := NewService(computer, perf.NewTracker(perf.TrackerOptions{}), workspace.NewStore(1), nil, ServiceOptions{})

	if _, err := svc.Compute(context.Background(), Query{ProjectID: "core"}); errors.CodeOf(err) != errors.SnapshotNotFound {
		t.Errorf("Compute() error = %v, want SNAPSHOT_NOT_FOUND", err)
	}
	if svc.CurrentSnapshot() != nil {
		t.Error("CurrentSnapshot() should be nil")
	}
}

func TestService_Compute(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceOptions{})

	res, err := svc.Compute(context.Background(), Query{
		ProjectID:       "core",
		DocumentID:      "core/a.txt",
		HostAnalyzerIDs: []string{"host-a"},
		Kind:            analyzers.Syntax,
		Explicit:        true,
	})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v", res.Diagnostics)
	}
	m := res.Diagnostics[0].Diagnostics
	if len(m.Syntax) != 1 || len(m.Semantic) != 0 {
		t.Errorf("syntax-only request buckets = %+v", m)
	}

	stats := svc.CacheStats()
	if stats.Misses != 1 || stats.ProjectID != "core" {
		t.Errorf("CacheStats() = %+v", stats)
	}

	if _, err := svc.ComputeDiagnostics(context.Background(), Request{}); errors.CodeOf(err) != errors.InvalidRequest {
		t.Errorf("request without project error = %v", err)
	}
}

func TestService_Deprioritization(t *testing.T) {
	svc, _, tracker := newTestService(t, ServiceOptions{
		Policy: perf.ThresholdPolicy{AverageThreshold: 100},
	})

	svc.ReportPerformance([]perf.AnalyzerTiming{
		{AnalyzerID: "host-a", BuiltIn: true, Elapsed: time.Millisecond},
		{AnalyzerID: "proj-a", Elapsed: 500 * time.Millisecond},
	}, 1, false)
	if tracker.SnapshotCount(false) != 1 {
		t.Fatal("ReportPerformance did not reach the tracker")
	}

	got, err := svc.GetDeprioritizationCandidates(context.Background(), "core", []string{"host-a", "proj-a"})
	if err != nil {
		t.Fatalf("GetDeprioritizationCandidates() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("candidates before any statistics = %v", got)
	}

	tracker.PerformanceData(false)
	got, err = svc.GetDeprioritizationCandidates(context.Background(), "core", []string{"host-a", "proj-a"})
	if err != nil {
		t.Fatalf("GetDeprioritizationCandidates() error = %v", err)
	}
	if _, ok := got["proj-a"]; !ok || len(got) != 1 {
		t.Errorf("candidates = %v, want proj-a", got)
	}
	if len(svc.PerformanceData(false)) != 2 {
		t.Error("PerformanceData() should return the latest rows")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.GetDeprioritizationCandidates(ctx, "core", nil); err == nil {
		t.Error("cancelled context should fail")
	}
}

func TestService_ListAnalyzers(t *testing.T) {
	svc, s, _ := newTestService(t, ServiceOptions{})

	host, proj, err := svc.ListAnalyzers(context.Background(), s.Checksum, s.Project("core"))
	if err != nil {
		t.Fatalf("ListAnalyzers() error = %v", err)
	}
	if len(host) != 1 || host[0] != "host-a" || len(proj) != 1 || proj[0] != "proj-a" {
		t.Errorf("ListAnalyzers() = %v, %v", host, proj)
	}
}
