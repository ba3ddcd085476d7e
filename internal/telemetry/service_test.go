package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"diaghost/internal/perf"
	"diaghost/internal/storage"
)

func timing(id string, builtIn bool, ms int) perf.AnalyzerTiming {
	return perf.AnalyzerTiming{AnalyzerID: id, BuiltIn: builtIn, Elapsed: time.Duration(ms) * time.Millisecond}
}

// skewedSnapshot has one analyzer far slower than six peers.
func skewedSnapshot() []perf.AnalyzerTiming {
	return []perf.AnalyzerTiming{
		timing("a", true, 0),
		timing("b", true, 100),
		timing("c", true, 110),
		timing("d", true, 120),
		timing("e", true, 130),
		timing("f", true, 140),
		timing("rules/lint/slow", false, 5000),
	}
}

func TestService_SessionGate(t *testing.T) {
	tracker := perf.NewTracker(perf.TrackerOptions{DocumentMinSampleSize: 1, SpanMinSampleSize: 1})
	s := NewService(tracker, false, nil)

	s.AddSnapshot(skewedSnapshot(), 1, false)
	if tracker.SnapshotCount(false) != 0 {
		t.Error("inactive session should drop snapshots")
	}

	s.SetActive(true)
	if !s.HasActiveSession() {
		t.Fatal("HasActiveSession() = false after SetActive(true)")
	}
	s.AddSnapshot(skewedSnapshot(), 1, true)
	if tracker.SnapshotCount(true) != 1 {
		t.Error("active session should forward snapshots")
	}
	if s.Tracker() != tracker {
		t.Error("Tracker() returned a different tracker")
	}
}

func TestDisplayID(t *testing.T) {
	if got := DisplayID("line-length", true); got != "line-length" {
		t.Errorf("built-in id = %s, want verbatim", got)
	}

	got := DisplayID("rules/acme/secret", false)
	if !strings.HasPrefix(got, "analyzer-") || len(got) != len("analyzer-")+16 {
		t.Errorf("third-party id = %s, want analyzer- plus 16 hex chars", got)
	}
	if strings.Contains(got, "acme") {
		t.Error("third-party id leaks its name")
	}
	if DisplayID("rules/acme/secret", false) != got {
		t.Error("DisplayID is not stable")
	}
	if DisplayID("rules/acme/other", false) == got {
		t.Error("distinct ids should hash differently")
	}
}

func TestReporter_FlushStoresReport(t *testing.T) {
	db, err := storage.Open(storage.MemoryDir, nil)
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	defer db.Close()

	tracker := perf.NewTracker(perf.TrackerOptions{DocumentMinSampleSize: 2, SpanMinSampleSize: 2})
	for i := 0; i < 2; i++ {
		tracker.AddSnapshot(skewedSnapshot(), 1, false)
	}

	r := NewReporter(tracker, db, nil, ReporterConfig{Interval: time.Hour, Retention: time.Hour, Report: perf.DefaultReportOptions()})
	reports, err := r.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(reports) != 1 || reports[0].ForSpan {
		t.Fatalf("reports = %+v, want one document report", reports)
	}
	if len(reports[0].Analyzers) != 1 || reports[0].Analyzers[0].AnalyzerID != "rules/lint/slow" {
		t.Errorf("report analyzers = %+v", reports[0].Analyzers)
	}

	records, err := db.GetPerformanceReports(time.Now().Add(-time.Minute), nil, 0)
	if err != nil {
		t.Fatalf("GetPerformanceReports() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("stored %d rows, want 1", len(records))
	}
	rec := records[0]
	if rec.ReportID != reports[0].ID || rec.AnalyzerKey != DisplayID("rules/lint/slow", false) || rec.BuiltIn {
		t.Errorf("stored record = %+v", rec)
	}

	again, err := r.Flush(context.Background())
	if err != nil || len(again) != 0 {
		t.Errorf("second Flush() = %v, %v, want nothing new", again, err)
	}
}

type failingStore struct{}

func (failingStore) RecordPerformanceReport(string, bool, []storage.PerformanceRow) error {
	return errors.New("disk full")
}

func (failingStore) CleanupOldReports(time.Duration) (int64, error) { return 0, nil }

func TestReporter_FlushStoreError(t *testing.T) {
	tracker := perf.NewTracker(perf.TrackerOptions{DocumentMinSampleSize: 1, SpanMinSampleSize: 1})
	tracker.AddSnapshot(skewedSnapshot(), 1, true)

	r := NewReporter(tracker, failingStore{}, nil, DefaultReporterConfig())
	if _, err := r.Flush(context.Background()); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Flush() error = %v, want the store error", err)
	}
}

func TestReporter_StartStop(t *testing.T) {
	tracker := perf.NewTracker(perf.TrackerOptions{})
	r := NewReporter(tracker, nil, nil, ReporterConfig{Interval: time.Millisecond})
	r.Start()
	r.Start()
	time.Sleep(5 * time.Millisecond)
	if err := r.Stop(time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Flush(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Flush() on cancelled ctx = %v", err)
	}
}
