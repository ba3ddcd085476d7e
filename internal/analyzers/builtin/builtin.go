// Package builtin contains the analyzers shipped with diaghost. They are
// trusted: their ids are reported verbatim in telemetry.
package builtin

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"diaghost/internal/analyzers"
)

// Built-in analyzer ids. Each analyzer reports diagnostics under its own id.
const (
	SyntaxErrorsID       = "syntax-errors"
	LineLengthID         = "line-length"
	TrailingWhitespaceID = "trailing-whitespace"
	TodoCommentsID       = "todo-comments"
	DuplicateContentID   = "duplicate-content"
	ProjectSizeID        = "project-size"
)

// All is the name that resolves to every built-in analyzer.
const All = "all"

const (
	DefaultMaxLineLength = 120
	DefaultMaxDocuments  = 500
)

var constructors = map[string]func() analyzers.Analyzer{
	SyntaxErrorsID:       func() analyzers.Analyzer { return &SyntaxErrors{} },
	LineLengthID:         func() analyzers.Analyzer { return &LineLength{Max: DefaultMaxLineLength} },
	TrailingWhitespaceID: func() analyzers.Analyzer { return &TrailingWhitespace{} },
	TodoCommentsID:       func() analyzers.Analyzer { return &TodoComments{} },
	DuplicateContentID:   func() analyzers.Analyzer { return &DuplicateContent{} },
	ProjectSizeID:        func() analyzers.Analyzer { return &ProjectSize{MaxDocuments: DefaultMaxDocuments} },
}

// Names returns the built-in analyzer ids in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns fresh instances for a built-in reference name: "all" or a
// single analyzer id.
func Resolve(name string) ([]analyzers.Analyzer, error) {
	if name == All {
		names := Names()
		out := make([]analyzers.Analyzer, 0, len(names))
		for _, n := range names {
			out = append(out, constructors[n]())
		}
		return out, nil
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown built-in analyzer %q", name)
	}
	return []analyzers.Analyzer{ctor()}, nil
}

// SyntaxErrors reports the parse errors of a document.
type SyntaxErrors struct{}

func (*SyntaxErrors) ID() string                      { return SyntaxErrorsID }
func (*SyntaxErrors) Kinds() []analyzers.AnalysisKind { return []analyzers.AnalysisKind{analyzers.Syntax} }

func (*SyntaxErrors) Analyze(_ context.Context, pass *analyzers.Pass) error {
	if pass.Tree == nil {
		return nil
	}
	for _, span := range pass.Tree.Errors {
		pass.ReportAt(SyntaxErrorsID, analyzers.SeverityError, span, "syntax error")
	}
	return nil
}

// LineLength reports lines longer than Max characters.
type LineLength struct {
	Max int
}

func (*LineLength) ID() string                      { return LineLengthID }
func (*LineLength) Kinds() []analyzers.AnalysisKind { return []analyzers.AnalysisKind{analyzers.Syntax} }

func (l *LineLength) Analyze(ctx context.Context, pass *analyzers.Pass) error {
	if pass.Tree == nil {
		return nil
	}
	for line := 1; line <= pass.Tree.LineCount(); line++ {
		if line%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		text := pass.Tree.LineText(line)
		if n := utf8.RuneCountInString(text); n > l.Max {
			pass.ReportAt(LineLengthID, analyzers.SeverityInfo, pass.Tree.LineSpan(line),
				fmt.Sprintf("line is %d characters long (max %d)", n, l.Max))
		}
	}
	return nil
}

// TrailingWhitespace reports whitespace at the end of lines.
type TrailingWhitespace struct{}

func (*TrailingWhitespace) ID() string { return TrailingWhitespaceID }
func (*TrailingWhitespace) Kinds() []analyzers.AnalysisKind {
	return []analyzers.AnalysisKind{analyzers.Syntax}
}

func (*TrailingWhitespace) Analyze(_ context.Context, pass *analyzers.Pass) error {
	if pass.Tree == nil {
		return nil
	}
	for line := 1; line <= pass.Tree.LineCount(); line++ {
		text := pass.Tree.LineText(line)
		trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
		if len(trimmed) == len(text) {
			continue
		}
		span := pass.Tree.LineSpan(line)
		pass.ReportAt(TrailingWhitespaceID, analyzers.SeverityWarning,
			analyzers.TextSpan{Start: span.Start + len(trimmed), End: span.End}, "trailing whitespace")
	}
	return nil
}

var todoPattern = regexp.MustCompile(`\b(TODO|FIXME|XXX)\b`)

// TodoComments reports TODO, FIXME and XXX markers.
type TodoComments struct{}

func (*TodoComments) ID() string                      { return TodoCommentsID }
func (*TodoComments) Kinds() []analyzers.AnalysisKind { return []analyzers.AnalysisKind{analyzers.Semantic} }

func (*TodoComments) Analyze(_ context.Context, pass *analyzers.Pass) error {
	if pass.Tree == nil {
		return nil
	}
	for line := 1; line <= pass.Tree.LineCount(); line++ {
		text := pass.Tree.LineText(line)
		loc := todoPattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		start := pass.Tree.LineStarts[line-1]
		pass.ReportAt(TodoCommentsID, analyzers.SeverityInfo,
			analyzers.TextSpan{Start: start + loc[0], End: start + loc[1]},
			fmt.Sprintf("%s comment", text[loc[0]:loc[1]]))
	}
	return nil
}

// DuplicateContent reports, on every other document of the project with the
// same text, that it duplicates the analyzed document. Its diagnostics are
// located outside the analyzed document.
type DuplicateContent struct{}

func (*DuplicateContent) ID() string { return DuplicateContentID }
func (*DuplicateContent) Kinds() []analyzers.AnalysisKind {
	return []analyzers.AnalysisKind{analyzers.Semantic}
}

func (*DuplicateContent) Analyze(ctx context.Context, pass *analyzers.Pass) error {
	if pass.Document == nil || strings.TrimSpace(pass.Document.Text) == "" {
		return nil
	}
	for _, other := range pass.Compilation.Project().Documents {
		if err := ctx.Err(); err != nil {
			return err
		}
		if other == pass.Document || other.Text != pass.Document.Text {
			continue
		}
		tree := pass.Compilation.Tree(other.ID)
		if tree == nil {
			continue
		}
		pass.Report(analyzers.Diagnostic{
			ID:       DuplicateContentID,
			Severity: analyzers.SeverityWarning,
			Message:  fmt.Sprintf("content duplicates %s", pass.Document.ID),
			Location: tree.Location(analyzers.TextSpan{}),
		})
	}
	return nil
}

// ProjectSize reports projects with more than MaxDocuments documents. It
// only runs in the project pass and its diagnostic has no location.
type ProjectSize struct {
	MaxDocuments int
}

func (*ProjectSize) ID() string                      { return ProjectSizeID }
func (*ProjectSize) Kinds() []analyzers.AnalysisKind { return []analyzers.AnalysisKind{analyzers.Project} }

func (p *ProjectSize) Analyze(_ context.Context, pass *analyzers.Pass) error {
	project := pass.Compilation.Project()
	if n := len(project.Documents); n > p.MaxDocuments {
		pass.Report(analyzers.Diagnostic{
			ID:       ProjectSizeID,
			Severity: analyzers.SeverityInfo,
			Message:  fmt.Sprintf("project %s has %d documents (max %d)", project.Name, n, p.MaxDocuments),
		})
	}
	return nil
}
