package analysis

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"diaghost/internal/analyzers"
	"diaghost/internal/workspace"
)

// AnalyzerFailureID is the diagnostic id reported when an analyzer panics or
// returns an error.
const AnalyzerFailureID = "AD0001"

// Options configure analyzer execution.
type Options struct {
	// MaxParallelism bounds concurrently running analyzers (default 1).
	MaxParallelism int
	// ReportSuppressed keeps suppressed diagnostics, flagged IsSuppressed.
	ReportSuppressed bool
	Logger           *slog.Logger
}

// Scope selects what one Analyze call covers. A nil Document means the whole
// project. Span is only honoured for document scopes.
type Scope struct {
	Analyzers []analyzers.Analyzer // nil means every attached analyzer
	Document  *workspace.Document
	Span      *analyzers.TextSpan
	Kind      analyzers.AnalysisKind
	// ReportSuppressed overrides Options.ReportSuppressed for this call.
	ReportSuppressed bool
}

// Telemetry is the per-analyzer execution record of one Analyze call.
type Telemetry struct {
	ExecutionTime   time.Duration
	DiagnosticCount int
	SuppressedCount int
	ExceptionCount  int
}

// AnalyzerResult holds one analyzer's diagnostics, bucketed by where they
// were reported. Document-keyed buckets map document id to diagnostics.
type AnalyzerResult struct {
	Syntax    map[string][]analyzers.Diagnostic
	Semantic  map[string][]analyzers.Diagnostic
	NonLocal  map[string][]analyzers.Diagnostic
	Other     []analyzers.Diagnostic
	Telemetry Telemetry
}

func newAnalyzerResult() *AnalyzerResult {
	return &AnalyzerResult{
		Syntax:   make(map[string][]analyzers.Diagnostic),
		Semantic: make(map[string][]analyzers.Diagnostic),
		NonLocal: make(map[string][]analyzers.Diagnostic),
	}
}

// Empty reports whether no diagnostics were kept.
func (r *AnalyzerResult) Empty() bool {
	return len(r.Syntax) == 0 && len(r.Semantic) == 0 && len(r.NonLocal) == 0 && len(r.Other) == 0
}

// Result is the outcome of one Analyze call, keyed by analyzer instance.
type Result struct {
	Analyzers []analyzers.Analyzer // analyzers that ran, in scope order
	results   map[analyzers.Analyzer]*AnalyzerResult
}

// Get returns the result of one analyzer, or nil if it did not run.
func (r *Result) Get(a analyzers.Analyzer) *AnalyzerResult {
	return r.results[a]
}

// CompilationWithAnalyzers binds a compilation to the analyzers allowed to
// run on it. Narrowed views share the compilation.
type CompilationWithAnalyzers struct {
	compilation *Compilation
	analyzers   []analyzers.Analyzer
	attached    map[analyzers.Analyzer]bool
	opts        Options
}

// NewCompilationWithAnalyzers attaches as to c. Duplicate instances are dropped.
func NewCompilationWithAnalyzers(c *Compilation, as []analyzers.Analyzer, opts Options) *CompilationWithAnalyzers {
	if opts.MaxParallelism < 1 {
		opts.MaxParallelism = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	cwa := &CompilationWithAnalyzers{
		compilation: c,
		attached:    make(map[analyzers.Analyzer]bool, len(as)),
		opts:        opts,
	}
	for _, a := range as {
		if cwa.attached[a] {
			continue
		}
		cwa.attached[a] = true
		cwa.analyzers = append(cwa.analyzers, a)
	}
	return cwa
}

// Compilation returns the underlying compilation.
func (cwa *CompilationWithAnalyzers) Compilation() *Compilation {
	return cwa.compilation
}

// Analyzers returns the attached analyzers.
func (cwa *CompilationWithAnalyzers) Analyzers() []analyzers.Analyzer {
	return append([]analyzers.Analyzer(nil), cwa.analyzers...)
}

// WithAnalyzers returns a view restricted to the attached analyzers in
// subset. The receiver is not modified.
func (cwa *CompilationWithAnalyzers) WithAnalyzers(subset []analyzers.Analyzer) *CompilationWithAnalyzers {
	return NewCompilationWithAnalyzers(cwa.compilation, cwa.restrict(subset), cwa.opts)
}

func (cwa *CompilationWithAnalyzers) restrict(subset []analyzers.Analyzer) []analyzers.Analyzer {
	out := make([]analyzers.Analyzer, 0, len(subset))
	for _, a := range subset {
		if cwa.attached[a] {
			out = append(out, a)
		}
	}
	return out
}

// pass is one analyzer invocation target.
type pass struct {
	doc  *workspace.Document
	kind analyzers.AnalysisKind
}

func (cwa *CompilationWithAnalyzers) passes(scope Scope) []pass {
	kinds := []analyzers.AnalysisKind{analyzers.Syntax, analyzers.Semantic}
	if scope.Kind == analyzers.Syntax || scope.Kind == analyzers.Semantic {
		kinds = []analyzers.AnalysisKind{scope.Kind}
	}

	if scope.Document != nil {
		out := make([]pass, 0, len(kinds))
		for _, k := range kinds {
			out = append(out, pass{doc: scope.Document, kind: k})
		}
		return out
	}

	docs := cwa.compilation.Project().Documents
	out := make([]pass, 0, len(docs)*len(kinds)+1)
	for _, d := range docs {
		for _, k := range kinds {
			out = append(out, pass{doc: d, kind: k})
		}
	}
	return append(out, pass{kind: analyzers.Project})
}

// Analyze runs the scope's analyzers concurrently. Analyzer failures become
// AD0001 diagnostics; cancellation aborts the whole call with the context
// error.
func (cwa *CompilationWithAnalyzers) Analyze(ctx context.Context, scope Scope) (*Result, error) {
	run := cwa.analyzers
	if scope.Analyzers != nil {
		run = cwa.restrict(scope.Analyzers)
	}
	if scope.Document != nil && cwa.compilation.Tree(scope.Document.ID) == nil {
		return nil, fmt.Errorf("document %s is not part of project %s", scope.Document.ID, cwa.compilation.Project().ID)
	}

	passes := cwa.passes(scope)
	res := &Result{
		Analyzers: run,
		results:   make(map[analyzers.Analyzer]*AnalyzerResult, len(run)),
	}
	for _, a := range run {
		res.results[a] = newAnalyzerResult()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cwa.opts.MaxParallelism)
	for _, a := range run {
		out := res.results[a]
		g.Go(func() error {
			return cwa.runAnalyzer(gctx, a, passes, scope, out)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (cwa *CompilationWithAnalyzers) runAnalyzer(ctx context.Context, a analyzers.Analyzer, passes []pass, scope Scope, out *AnalyzerResult) error {
	start := time.Now()
	defer func() { out.Telemetry.ExecutionTime = time.Since(start) }()

	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !analyzers.RunsFor(a, p.kind) {
			continue
		}

		var span *analyzers.TextSpan
		if scope.Document != nil {
			span = scope.Span
		}
		keepSuppressed := scope.ReportSuppressed || cwa.opts.ReportSuppressed
		report := func(d analyzers.Diagnostic) { cwa.collect(out, p, span, keepSuppressed, d) }

		err := invoke(ctx, a, analyzers.NewPass(cwa.compilation, p.doc, p.kind, span, report))
		if err == nil {
			continue
		}
		if ctx.Err() != nil || isCancellation(err) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		cwa.opts.Logger.Warn("Analyzer failed", "analyzer", a.ID(), "kind", p.kind.String(), "error", err)
		out.Telemetry.ExceptionCount++
		out.Other = append(out.Other, analyzers.Diagnostic{
			ID:       AnalyzerFailureID,
			Severity: analyzers.SeverityWarning,
			Message:  fmt.Sprintf("analyzer %s failed: %v", a.ID(), err),
		})
		// A failed analyzer is not run for the remaining passes.
		return nil
	}
	return nil
}

// invoke runs one pass, converting a panic into an error.
func invoke(ctx context.Context, a analyzers.Analyzer, p *analyzers.Pass) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return a.Analyze(ctx, p)
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func isCancellation(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// collect buckets, filters and suppresses one reported diagnostic. Only the
// analyzer's own goroutine writes to out.
func (cwa *CompilationWithAnalyzers) collect(out *AnalyzerResult, p pass, span *analyzers.TextSpan, keepSuppressed bool, d analyzers.Diagnostic) {
	local := d.Location != nil && p.doc != nil && d.Location.DocumentID == p.doc.ID
	if local && span != nil && !span.IntersectsWith(d.Location.Span) {
		return
	}

	if d.Location != nil && isSuppressed(cwa.compilation.Tree(d.Location.DocumentID), d) {
		out.Telemetry.SuppressedCount++
		if !keepSuppressed {
			return
		}
		d.IsSuppressed = true
	}
	out.Telemetry.DiagnosticCount++

	switch {
	case d.Location == nil:
		out.Other = append(out.Other, d)
	case local && p.kind == analyzers.Syntax:
		out.Syntax[p.doc.ID] = append(out.Syntax[p.doc.ID], d)
	case local:
		out.Semantic[p.doc.ID] = append(out.Semantic[p.doc.ID], d)
	default:
		out.NonLocal[d.Location.DocumentID] = append(out.NonLocal[d.Location.DocumentID], d)
	}
}
