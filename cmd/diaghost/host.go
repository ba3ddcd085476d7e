package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"diaghost/internal/analysis"
	"diaghost/internal/config"
	"diaghost/internal/diagnostics"
	"diaghost/internal/perf"
	"diaghost/internal/telemetry"
	"diaghost/internal/workspace"
)

// host wires the scheduler stack for one workspace. serve and analyze share it.
type host struct {
	cfg       *config.Config
	tracker   *perf.Tracker
	telemetry *telemetry.Service
	service   *diagnostics.Service
	loader    *workspace.Loader
	snapshots *workspace.Store
	logger    *slog.Logger
}

func newHost(root string, cfg *config.Config, logger *slog.Logger) *host {
	tracker := perf.NewTracker(perf.TrackerOptions{
		DocumentMinSampleSize: cfg.Performance.DocumentMinSampleSize,
		SpanMinSampleSize:     cfg.Performance.SpanMinSampleSize,
		Logger:                logger,
	})
	tel := telemetry.NewService(tracker, cfg.Telemetry.Enabled, logger)

	provider := analysis.NewDefaultProvider(cfg.Scheduler.MaxAnalyzerParallelism, logger)
	state := diagnostics.NewState(provider, diagnostics.CacheOptions{
		Disabled:       !cfg.Scheduler.CacheEnabled,
		MaxParallelism: cfg.Scheduler.MaxAnalyzerParallelism,
		Logger:         logger,
	})
	computer := diagnostics.NewComputer(state, tel, logger)

	snapshots := workspace.NewStore(cfg.Workspace.MaxSnapshots)
	service := diagnostics.NewService(computer, tracker, snapshots, logger, diagnostics.ServiceOptions{
		Policy: perf.ThresholdPolicy{
			AverageThreshold: cfg.Deprioritization.AverageThresholdMs,
			MaxCandidates:    cfg.Deprioritization.MaxCandidates,
		},
		UseSpanStatistics: cfg.Deprioritization.UseSpanStatistics,
	})

	return &host{
		cfg:       cfg,
		tracker:   tracker,
		telemetry: tel,
		service:   service,
		loader:    workspace.NewLoader(resolveWorkspaceDir(root, cfg.Workspace.Root), cfg.Workspace.Manifest, logger),
		snapshots: snapshots,
		logger:    logger,
	}
}

// reload loads a fresh snapshot and makes it current.
func (h *host) reload(ctx context.Context) (*workspace.Solution, error) {
	solution, err := h.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	h.snapshots.Add(solution)
	h.logger.Info("Workspace snapshot loaded",
		"checksum", solution.Checksum.Short(),
		"projects", len(solution.Projects),
		"documents", solution.DocumentCount(),
	)
	return solution, nil
}

// reporterConfig maps the performance section onto the reporter.
func reporterConfig(cfg *config.Config) telemetry.ReporterConfig {
	return telemetry.ReporterConfig{
		Interval:  time.Duration(cfg.Performance.ReportIntervalSeconds) * time.Second,
		Retention: time.Duration(cfg.Performance.RetentionDays) * 24 * time.Hour,
		Report: perf.ReportOptions{
			AverageThreshold: cfg.Performance.AverageThresholdMs,
			StddevThreshold:  cfg.Performance.StddevThresholdMs,
			MinLOF:           cfg.Performance.MinLocalOutlierFactor,
			MinAnalyzers:     cfg.Performance.MinAnalyzersForReport,
		},
	}
}

// resolveWorkspaceDir joins a relative workspace.root onto the --root directory.
func resolveWorkspaceDir(root, dir string) string {
	if dir == "" {
		return root
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}
