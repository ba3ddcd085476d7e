// Package analyzers defines the analyzer contract: an Analyzer inspects a Pass
// and reports Diagnostics. Built-in analyzers live in analyzers/builtin,
// project-defined rule analyzers in analyzers/rules.
package analyzers

import (
	"context"
	"fmt"
	"strings"

	"diaghost/internal/workspace"
)

// Analyzer is one static-analysis pass. Implementations must be pointer
// types; instances are used as map keys.
type Analyzer interface {
	// ID is the stable analyzer id, unique within a host.
	ID() string
	// Analyze inspects the pass and reports diagnostics through pass.Report.
	// A returned error other than a context error is reported as an
	// analyzer failure; it does not abort other analyzers.
	Analyze(ctx context.Context, pass *Pass) error
}

// KindFilter is implemented by analyzers that only run for one kind of pass.
// Analyzers without it run for every pass.
type KindFilter interface {
	Kinds() []AnalysisKind
}

// RunsFor reports whether a runs in passes of kind k.
func RunsFor(a Analyzer, k AnalysisKind) bool {
	f, ok := a.(KindFilter)
	if !ok {
		return true
	}
	for _, kind := range f.Kinds() {
		if kind == k {
			return true
		}
	}
	return false
}

// AnalysisKind selects syntax or semantic analysis of a document.
type AnalysisKind int

const (
	// Unspecified means both kinds for project-scoped requests.
	Unspecified AnalysisKind = iota
	Syntax
	Semantic
	// Project is the single whole-project pass; its Document is nil.
	Project
)

// String returns the lowercase kind name.
func (k AnalysisKind) String() string {
	switch k {
	case Syntax:
		return "syntax"
	case Semantic:
		return "semantic"
	case Project:
		return "project"
	default:
		return "unspecified"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k AnalysisKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *AnalysisKind) UnmarshalText(text []byte) error {
	parsed, err := ParseAnalysisKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseAnalysisKind parses "syntax", "semantic" or "" (unspecified).
func ParseAnalysisKind(s string) (AnalysisKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unspecified":
		return Unspecified, nil
	case "syntax":
		return Syntax, nil
	case "semantic":
		return Semantic, nil
	default:
		return Unspecified, fmt.Errorf("unknown analysis kind %q", s)
	}
}

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHidden  Severity = "hidden"
)

// ParseSeverity parses a severity name, defaulting to warning.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(s)) {
	case SeverityError:
		return SeverityError
	case SeverityInfo:
		return SeverityInfo
	case SeverityHidden:
		return SeverityHidden
	default:
		return SeverityWarning
	}
}

// Location places a diagnostic in a document. Line and Column are 1-based.
type Location struct {
	DocumentID string   `json:"documentId"`
	Path       string   `json:"path,omitempty"`
	Span       TextSpan `json:"span"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
}

// Diagnostic is one reported finding. A nil Location means project-wide.
type Diagnostic struct {
	ID           string    `json:"id"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Location     *Location `json:"location,omitempty"`
	IsSuppressed bool      `json:"isSuppressed,omitempty"`
}

// Compilation is the analyzed view of one project.
type Compilation interface {
	Project() *workspace.Project
	// Tree returns the syntax tree of a document, or nil if the document is
	// not part of the project.
	Tree(documentID string) *SyntaxTree
}

// Pass is one analyzer invocation. Document and Tree are nil for the
// project pass.
type Pass struct {
	Compilation Compilation
	Document    *workspace.Document
	Tree        *SyntaxTree
	Kind        AnalysisKind
	Span        *TextSpan

	report func(Diagnostic)
}

// NewPass creates a pass delivering diagnostics to report.
func NewPass(c Compilation, doc *workspace.Document, kind AnalysisKind, span *TextSpan, report func(Diagnostic)) *Pass {
	p := &Pass{
		Compilation: c,
		Document:    doc,
		Kind:        kind,
		Span:        span,
		report:      report,
	}
	if doc != nil && c != nil {
		p.Tree = c.Tree(doc.ID)
	}
	return p
}

// Report records a diagnostic.
func (p *Pass) Report(d Diagnostic) {
	if p.report != nil {
		p.report(d)
	}
}

// ReportAt records a diagnostic at span in the pass's document.
func (p *Pass) ReportAt(id string, severity Severity, span TextSpan, message string) {
	d := Diagnostic{ID: id, Severity: severity, Message: message}
	if p.Tree != nil {
		d.Location = p.Tree.Location(span)
	}
	p.Report(d)
}
