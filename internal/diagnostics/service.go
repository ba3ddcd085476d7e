package diagnostics

import (
	"context"
	"fmt"
	"log/slog"

	"diaghost/internal/analyzers"
	"diaghost/internal/errors"
	"diaghost/internal/perf"
	"diaghost/internal/workspace"
)

// SnapshotSource looks up workspace snapshots.
type SnapshotSource interface {
	Get(checksum workspace.Checksum) (*workspace.Solution, bool)
	Current() *workspace.Solution
}

// Query names a request by ids, the way remote callers send it. An empty
// Checksum selects the current snapshot.
type Query struct {
	Checksum           string                 `json:"checksum,omitempty"`
	ProjectID          string                 `json:"projectId"`
	DocumentID         string                 `json:"documentId,omitempty"`
	Span               *analyzers.TextSpan    `json:"span,omitempty"`
	ProjectAnalyzerIDs []string               `json:"projectAnalyzerIds,omitempty"`
	HostAnalyzerIDs    []string               `json:"hostAnalyzerIds,omitempty"`
	Kind               analyzers.AnalysisKind `json:"kind,omitempty"`
	Explicit           bool                   `json:"explicit,omitempty"`
	ReportSuppressed   bool                   `json:"reportSuppressed,omitempty"`
	LogPerformance     bool                   `json:"logPerformance,omitempty"`
	GetTelemetry       bool                   `json:"getTelemetry,omitempty"`
}

// ServiceOptions configure a Service.
type ServiceOptions struct {
	// Policy selects deprioritization candidates (default ThresholdPolicy at 250ms).
	Policy perf.CandidatePolicy
	// UseSpanStatistics feeds the policy span statistics instead of document ones.
	UseSpanStatistics bool
}

// Service is the externally callable surface: diagnostics, performance
// ingestion and deprioritization queries.
type Service struct {
	computer  *Computer
	tracker   *perf.Tracker
	snapshots SnapshotSource
	opts      ServiceOptions
	logger    *slog.Logger
}

// NewService creates a service. snapshots may be nil when callers only use
// ComputeDiagnostics with fully built requests.
func NewService(computer *Computer, tracker *perf.Tracker, snapshots SnapshotSource, logger *slog.Logger, opts ServiceOptions) *Service {
	if opts.Policy == nil {
		opts.Policy = perf.ThresholdPolicy{AverageThreshold: 250}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		computer:  computer,
		tracker:   tracker,
		snapshots: snapshots,
		opts:      opts,
		logger:    logger,
	}
}

// ComputeDiagnostics runs one request.
func (s *Service) ComputeDiagnostics(ctx context.Context, req Request) (*SerializableResults, error) {
	if req.Project == nil {
		return nil, errors.NewDiagError(errors.InvalidRequest, "request has no project", nil)
	}
	if req.Document != nil && req.Document.Project != nil && req.Document.Project.ID != req.Project.ID {
		return nil, errors.NewDiagError(errors.InvalidRequest,
			fmt.Sprintf("document %s does not belong to project %s", req.Document.ID, req.Project.ID), nil)
	}
	return s.computer.ComputeDiagnostics(ctx, req)
}

// Compute resolves q against the snapshot source and runs it.
func (s *Service) Compute(ctx context.Context, q Query) (*SerializableResults, error) {
	req, err := s.Resolve(q)
	if err != nil {
		return nil, err
	}
	return s.ComputeDiagnostics(ctx, req)
}

// Resolve turns q into a Request.
func (s *Service) Resolve(q Query) (Request, error) {
	solution, err := s.Snapshot(q.Checksum)
	if err != nil {
		return Request{}, err
	}

	project := solution.Project(q.ProjectID)
	if project == nil {
		return Request{}, errors.NewDiagError(errors.ProjectNotFound,
			fmt.Sprintf("project %q not found", q.ProjectID), nil)
	}

	var doc *workspace.Document
	if q.DocumentID != "" {
		if doc = project.Document(q.DocumentID); doc == nil {
			return Request{}, errors.NewDiagError(errors.DocumentNotFound,
				fmt.Sprintf("document %q not found in project %q", q.DocumentID, q.ProjectID), nil)
		}
	}
	if q.Span != nil {
		if doc == nil {
			return Request{}, errors.NewDiagError(errors.InvalidRequest, "span requires a document", nil)
		}
		if !q.Span.Valid() || q.Span.End > len(doc.Text) {
			return Request{}, errors.NewDiagError(errors.InvalidRequest,
				fmt.Sprintf("span %s is outside document %s", q.Span, doc.ID), nil)
		}
	}

	return Request{
		Project:            project,
		Document:           doc,
		Checksum:           solution.Checksum,
		Span:               q.Span,
		ProjectAnalyzerIDs: q.ProjectAnalyzerIDs,
		HostAnalyzerIDs:    q.HostAnalyzerIDs,
		Kind:               q.Kind,
		Explicit:           q.Explicit,
		ReportSuppressed:   q.ReportSuppressed,
		LogPerformance:     q.LogPerformance,
		GetTelemetry:       q.GetTelemetry,
	}, nil
}

// Snapshot returns the snapshot with checksum, or the current one when
// checksum is empty.
func (s *Service) Snapshot(checksum string) (*workspace.Solution, error) {
	if s.snapshots == nil {
		return nil, errors.NewDiagError(errors.SnapshotNotFound, "no workspace loaded", nil)
	}
	if checksum == "" {
		if cur := s.snapshots.Current(); cur != nil {
			return cur, nil
		}
		return nil, errors.NewDiagError(errors.SnapshotNotFound, "no workspace loaded", nil)
	}

	c, err := workspace.ParseChecksum(checksum)
	if err != nil {
		return nil, errors.NewDiagError(errors.InvalidRequest, "invalid checksum", err)
	}
	solution, ok := s.snapshots.Get(c)
	if !ok {
		return nil, errors.NewDiagError(errors.SnapshotNotFound,
			fmt.Sprintf("snapshot %s not found", c.Short()), nil)
	}
	return solution, nil
}

// ReportPerformance ingests timings measured outside ComputeDiagnostics.
func (s *Service) ReportPerformance(timings []perf.AnalyzerTiming, unitCount int, forSpan bool) {
	s.tracker.AddSnapshot(timings, unitCount, forSpan)
}

// PerformanceData returns the latest statistics of one queue.
func (s *Service) PerformanceData(forSpan bool) []perf.PerformanceInfo {
	return s.tracker.Latest(forSpan)
}

// GetDeprioritizationCandidates returns the analyzers among analyzerIDs the
// policy considers too slow for normal scheduling.
func (s *Service) GetDeprioritizationCandidates(ctx context.Context, projectID string, analyzerIDs []string) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats := s.tracker.Latest(s.opts.UseSpanStatistics)
	candidates := s.opts.Policy.Select(projectID, stats, analyzerIDs)
	if len(candidates) > 0 {
		s.logger.Debug("Deprioritization candidates", "project", projectID, "count", len(candidates))
	}
	return candidates, nil
}

// ListAnalyzers returns the ids of the host and project analyzers attached
// to project at checksum. The cached entry is used when it matches.
func (s *Service) ListAnalyzers(ctx context.Context, checksum workspace.Checksum, project *workspace.Project) (host, proj []string, err error) {
	entry := s.computer.state.cache.Current()
	if entry == nil || entry.Checksum != checksum || entry.Project.ID != project.ID {
		if entry, _, err = s.computer.state.cache.GetOrCreate(ctx, checksum, project, nil); err != nil {
			return nil, nil, err
		}
	}
	return analyzerIDs(entry, entry.HostAnalyzers), analyzerIDs(entry, entry.ProjectAnalyzers), nil
}

func analyzerIDs(entry *CacheEntry, as []analyzers.Analyzer) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		if id, ok := entry.Index.ID(a); ok {
			out = append(out, id)
		}
	}
	return out
}

// CacheStats returns the compilation cache counters.
func (s *Service) CacheStats() CacheStats {
	return s.computer.state.cache.Stats()
}

// CurrentSnapshot returns the newest snapshot, or nil.
func (s *Service) CurrentSnapshot() *workspace.Solution {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Current()
}
