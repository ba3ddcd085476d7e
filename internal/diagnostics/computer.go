// Package diagnostics schedules diagnostic computations under two priority
// classes over a single-slot compilation cache.
//
// Explicit (high priority) requests run immediately and cancel every
// running normal-priority computation. Normal-priority requests wait until
// no high-priority request is running and retry from scratch when they are
// preempted. Callers only ever see a result, their own cancellation, or an
// error from the compilation layer.
package diagnostics

import (
	"context"
	stderrors "errors"
	"log/slog"

	"diaghost/internal/analysis"
	"diaghost/internal/analyzers"
	"diaghost/internal/perf"
	"diaghost/internal/workspace"
)

// TelemetrySink receives per-request analyzer timings.
type TelemetrySink interface {
	HasActiveSession() bool
	AddSnapshot(timings []perf.AnalyzerTiming, unitCount int, forSpan bool)
}

// Request is one diagnostic computation. A nil Document analyzes the whole
// project; Span is only meaningful with a Document.
type Request struct {
	Project            *workspace.Project
	Document           *workspace.Document
	Checksum           workspace.Checksum
	Span               *analyzers.TextSpan
	ProjectAnalyzerIDs []string
	HostAnalyzerIDs    []string
	Kind               analyzers.AnalysisKind

	// Explicit requests run at high priority.
	Explicit         bool
	ReportSuppressed bool
	LogPerformance   bool
	GetTelemetry     bool
}

// Computer runs requests against shared State.
type Computer struct {
	state  *State
	sink   TelemetrySink
	logger *slog.Logger
}

// NewComputer creates a computer. sink may be nil.
func NewComputer(state *State, sink TelemetrySink, logger *slog.Logger) *Computer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Computer{state: state, sink: sink, logger: logger}
}

// State returns the shared scheduler state.
func (c *Computer) State() *State {
	return c.state
}

// ComputeDiagnostics runs req at the priority selected by req.Explicit.
func (c *Computer) ComputeDiagnostics(ctx context.Context, req Request) (*SerializableResults, error) {
	if req.Explicit {
		return c.runHighPriority(ctx, req)
	}
	return c.runNormalPriority(ctx, req)
}

func (c *Computer) runHighPriority(ctx context.Context, req Request) (*SerializableResults, error) {
	task, sources := c.state.enterHigh()
	defer c.state.leaveHigh(task)

	for _, src := range sources {
		if src.finished.Load() {
			c.logger.Debug("Normal priority computation already finished", "project", req.Project.ID)
			continue
		}
		src.cancel(errPreempted)
	}

	return c.compute(ctx, req)
}

func (c *Computer) runNormalPriority(ctx context.Context, req Request) (*SerializableResults, error) {
	attempt := 0
	for {
		src, waits := c.state.enterNormal(ctx)
		if src == nil {
			for _, done := range waits {
				select {
				case <-done:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			continue
		}

		attempt++
		res, err := c.compute(src.ctx, req)
		preempted := err != nil && ctx.Err() == nil &&
			stderrors.Is(err, context.Canceled) && stderrors.Is(context.Cause(src.ctx), errPreempted)
		c.state.leaveNormal(src)

		if preempted {
			c.logger.Debug("Normal priority computation preempted", "project", req.Project.ID, "attempt", attempt)
			continue
		}
		return res, err
	}
}

// compute is the work shared by both priority classes.
func (c *Computer) compute(ctx context.Context, req Request) (*SerializableResults, error) {
	if len(req.ProjectAnalyzerIDs) == 0 && len(req.HostAnalyzerIDs) == 0 {
		return emptyResults(), nil
	}

	entry, doc, err := c.state.cache.GetOrCreate(ctx, req.Checksum, req.Project, req.Document)
	if err != nil {
		return nil, err
	}

	requested := resolveAnalyzers(entry.Index, req.ProjectAnalyzerIDs, req.HostAnalyzerIDs)
	if len(requested) == 0 {
		return emptyResults(), nil
	}

	cwa := entry.CompilationWithAnalyzers
	if doc != nil && len(requested) < len(cwa.Analyzers()) {
		cwa = cwa.WithAnalyzers(requested)
	}

	scope := analysis.Scope{
		Analyzers:        requested,
		Document:         doc,
		Kind:             req.Kind,
		ReportSuppressed: req.ReportSuppressed,
	}
	if doc != nil {
		scope.Span = req.Span
	}
	res, err := cwa.Analyze(ctx, scope)
	if err != nil {
		return nil, err
	}

	if req.LogPerformance && c.sink != nil && c.sink.HasActiveSession() {
		unitCount := 1
		if doc == nil {
			unitCount += len(entry.Project.Documents)
		}
		timings := make([]perf.AnalyzerTiming, 0, len(res.Analyzers))
		for _, a := range res.Analyzers {
			id, _ := entry.Index.ID(a)
			timings = append(timings, perf.AnalyzerTiming{
				AnalyzerID: id,
				BuiltIn:    entry.IsBuiltIn(a),
				Elapsed:    res.Get(a).Telemetry.ExecutionTime,
			})
		}
		c.sink.AddSnapshot(timings, unitCount, scope.Span != nil)
	}

	return serialize(entry, res, req.GetTelemetry), nil
}

// resolveAnalyzers maps both id lists to indexed analyzers, project ids
// first. Unknown ids are skipped and duplicates dropped.
func resolveAnalyzers(idx *analyzers.IDIndex, projectIDs, hostIDs []string) []analyzers.Analyzer {
	ids := make([]string, 0, len(projectIDs)+len(hostIDs))
	ids = append(ids, projectIDs...)
	ids = append(ids, hostIDs...)
	return idx.Resolve(ids)
}
