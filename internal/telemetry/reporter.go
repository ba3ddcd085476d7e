package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"diaghost/internal/perf"
	"diaghost/internal/storage"
)

// ReportStore persists expensive-analyzer reports.
type ReportStore interface {
	RecordPerformanceReport(reportID string, forSpan bool, rows []storage.PerformanceRow) error
	CleanupOldReports(retention time.Duration) (int64, error)
}

// ReporterConfig contains reporter configuration
type ReporterConfig struct {
	Interval  time.Duration
	Retention time.Duration // 0 keeps reports forever
	Report    perf.ReportOptions
}

// DefaultReporterConfig returns the default reporter configuration
func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{
		Interval:  5 * time.Minute,
		Retention: 30 * 24 * time.Hour,
		Report:    perf.DefaultReportOptions(),
	}
}

// Report is one generated expensive-analyzer report.
type Report struct {
	ID        string                       `json:"id"`
	ForSpan   bool                         `json:"forSpan"`
	Analyzers []perf.ExpensiveAnalyzerInfo `json:"analyzers"`
}

// Reporter periodically generates document and span reports from the
// tracker and stores them.
type Reporter struct {
	tracker *perf.Tracker
	store   ReportStore
	config  ReporterConfig
	logger  *slog.Logger

	mu      sync.Mutex // serializes flushes
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewReporter creates a reporter. store may be nil, in which case reports
// are only logged.
func NewReporter(tracker *perf.Tracker, store ReportStore, logger *slog.Logger, config ReporterConfig) *Reporter {
	if config.Interval <= 0 {
		config.Interval = DefaultReporterConfig().Interval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reporter{
		tracker: tracker,
		store:   store,
		config:  config,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins the reporting loop. Calling it again has no effect.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	r.logger.Info("Starting performance reporter", "interval", r.config.Interval.String())
	r.wg.Add(1)
	go r.run()
}

// Stop ends the loop and waits for an in-flight report.
func (r *Reporter) Stop(timeout time.Duration) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Performance reporter stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("performance reporter shutdown timed out")
	}
}

func (r *Reporter) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.Flush(r.ctx); err != nil {
				r.logger.Warn("Performance report failed", "error", err.Error())
			}
		case <-r.ctx.Done():
			return
		}
	}
}

// Flush generates the document and span reports now. Only reports with at
// least one expensive analyzer are returned and stored.
func (r *Reporter) Flush(ctx context.Context) ([]Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reports []Report
	for _, forSpan := range []bool{false, true} {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		analyzers := r.tracker.GenerateReport(forSpan, r.config.Report)
		if len(analyzers) == 0 {
			continue
		}
		report := Report{ID: uuid.New().String(), ForSpan: forSpan, Analyzers: analyzers}
		if err := r.persist(report); err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}

	if r.store != nil && r.config.Retention > 0 {
		deleted, err := r.store.CleanupOldReports(r.config.Retention)
		if err != nil {
			return reports, fmt.Errorf("failed to clean up reports: %w", err)
		}
		if deleted > 0 {
			r.logger.Debug("Removed old performance reports", "rows", deleted)
		}
	}
	return reports, nil
}

func (r *Reporter) persist(report Report) error {
	rows := make([]storage.PerformanceRow, 0, len(report.Analyzers))
	for _, a := range report.Analyzers {
		key := DisplayID(a.AnalyzerID, a.BuiltIn)
		r.logger.Info("Expensive analyzer",
			"report", report.ID,
			"analyzer", key,
			"forSpan", report.ForSpan,
			"averageMs", a.Average,
			"stddevMs", a.AdjustedStdDev,
			"lof", a.LocalOutlierFactor,
		)
		rows = append(rows, storage.PerformanceRow{
			AnalyzerKey: key,
			BuiltIn:     a.BuiltIn,
			AverageMs:   a.Average,
			StdDevMs:    a.AdjustedStdDev,
			LOF:         a.LocalOutlierFactor,
		})
	}

	if r.store == nil {
		return nil
	}
	if err := r.store.RecordPerformanceReport(report.ID, report.ForSpan, rows); err != nil {
		return fmt.Errorf("failed to store report %s: %w", report.ID, err)
	}
	return nil
}
