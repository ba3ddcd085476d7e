package diagnostics

import (
	"sort"

	"diaghost/internal/analysis"
	"diaghost/internal/analyzers"
)

// Diagnostic is the flat wire form of analyzers.Diagnostic. Location
// fields are zero for diagnostics without a location.
type Diagnostic struct {
	ID           string `json:"id"`
	Severity     string `json:"severity"`
	Message      string `json:"message"`
	DocumentID   string `json:"documentId,omitempty"`
	Path         string `json:"path,omitempty"`
	Start        int    `json:"start,omitempty"`
	End          int    `json:"end,omitempty"`
	Line         int    `json:"line,omitempty"`
	Column       int    `json:"column,omitempty"`
	IsSuppressed bool   `json:"isSuppressed,omitempty"`
}

// DocumentDiagnostics groups diagnostics reported in one document.
type DocumentDiagnostics struct {
	DocumentID  string       `json:"documentId"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// DiagnosticMap holds one analyzer's diagnostics in four buckets.
type DiagnosticMap struct {
	Syntax   []DocumentDiagnostics `json:"syntax,omitempty"`
	Semantic []DocumentDiagnostics `json:"semantic,omitempty"`
	NonLocal []DocumentDiagnostics `json:"nonLocal,omitempty"`
	Other    []Diagnostic          `json:"other,omitempty"`
}

// Count returns the number of diagnostics in all buckets.
func (m DiagnosticMap) Count() int {
	n := len(m.Other)
	for _, bucket := range [][]DocumentDiagnostics{m.Syntax, m.Semantic, m.NonLocal} {
		for _, d := range bucket {
			n += len(d.Diagnostics)
		}
	}
	return n
}

// AnalyzerDiagnostics is the result of one analyzer.
type AnalyzerDiagnostics struct {
	AnalyzerID  string        `json:"analyzerId"`
	Diagnostics DiagnosticMap `json:"diagnostics"`
}

// AnalyzerTelemetry is the execution record of one analyzer.
type AnalyzerTelemetry struct {
	AnalyzerID      string  `json:"analyzerId"`
	BuiltIn         bool    `json:"builtIn"`
	ExecutionTimeMs float64 `json:"executionTimeMs"`
	DiagnosticCount int     `json:"diagnosticCount"`
	SuppressedCount int     `json:"suppressedCount"`
	ExceptionCount  int     `json:"exceptionCount"`
}

// SerializableResults is the transport-neutral outcome of one request.
// Entries are sorted by analyzer id.
type SerializableResults struct {
	Diagnostics []AnalyzerDiagnostics `json:"diagnostics"`
	Telemetry   []AnalyzerTelemetry   `json:"telemetry,omitempty"`
}

// Empty reports whether the results carry no diagnostics and no telemetry.
func (r *SerializableResults) Empty() bool {
	return len(r.Diagnostics) == 0 && len(r.Telemetry) == 0
}

func emptyResults() *SerializableResults {
	return &SerializableResults{Diagnostics: []AnalyzerDiagnostics{}}
}

// serialize converts a harness result keyed by instance into results keyed
// by analyzer id. Analyzers without diagnostics are omitted from the
// diagnostics list but keep their telemetry.
func serialize(entry *CacheEntry, res *analysis.Result, withTelemetry bool) *SerializableResults {
	out := emptyResults()
	for _, a := range res.Analyzers {
		r := res.Get(a)
		if r == nil {
			continue
		}
		id, ok := entry.Index.ID(a)
		if !ok {
			id = a.ID()
		}

		if !r.Empty() {
			out.Diagnostics = append(out.Diagnostics, AnalyzerDiagnostics{
				AnalyzerID: id,
				Diagnostics: DiagnosticMap{
					Syntax:   byDocument(r.Syntax),
					Semantic: byDocument(r.Semantic),
					NonLocal: byDocument(r.NonLocal),
					Other:    convert(r.Other),
				},
			})
		}
		if withTelemetry {
			out.Telemetry = append(out.Telemetry, AnalyzerTelemetry{
				AnalyzerID:      id,
				BuiltIn:         entry.IsBuiltIn(a),
				ExecutionTimeMs: float64(r.Telemetry.ExecutionTime.Microseconds()) / 1000,
				DiagnosticCount: r.Telemetry.DiagnosticCount,
				SuppressedCount: r.Telemetry.SuppressedCount,
				ExceptionCount:  r.Telemetry.ExceptionCount,
			})
		}
	}

	sort.Slice(out.Diagnostics, func(i, j int) bool { return out.Diagnostics[i].AnalyzerID < out.Diagnostics[j].AnalyzerID })
	sort.Slice(out.Telemetry, func(i, j int) bool { return out.Telemetry[i].AnalyzerID < out.Telemetry[j].AnalyzerID })
	return out
}

func byDocument(m map[string][]analyzers.Diagnostic) []DocumentDiagnostics {
	if len(m) == 0 {
		return nil
	}
	out := make([]DocumentDiagnostics, 0, len(m))
	for docID, ds := range m {
		out = append(out, DocumentDiagnostics{DocumentID: docID, Diagnostics: convert(ds)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}

func convert(ds []analyzers.Diagnostic) []Diagnostic {
	if len(ds) == 0 {
		return nil
	}
	out := make([]Diagnostic, 0, len(ds))
	for _, d := range ds {
		w := Diagnostic{
			ID:           d.ID,
			Severity:     string(d.Severity),
			Message:      d.Message,
			IsSuppressed: d.IsSuppressed,
		}
		if loc := d.Location; loc != nil {
			w.DocumentID = loc.DocumentID
			w.Path = loc.Path
			w.Start = loc.Span.Start
			w.End = loc.Span.End
			w.Line = loc.Line
			w.Column = loc.Column
		}
		out = append(out, w)
	}
	return out
}
