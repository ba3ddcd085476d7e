package analyzers

import (
	"fmt"
	"sort"

	"diaghost/internal/workspace"
)

// TextSpan is a half-open byte range [Start, End).
type TextSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the span is non-negative and ordered.
func (s TextSpan) Valid() bool {
	return s.Start >= 0 && s.End >= s.Start
}

// Len returns the span length in bytes.
func (s TextSpan) Len() int {
	return s.End - s.Start
}

// Contains reports whether offset lies inside the span.
func (s TextSpan) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// IntersectsWith reports whether the spans overlap or touch. An empty span
// intersects a span it lies within or at the boundary of.
func (s TextSpan) IntersectsWith(o TextSpan) bool {
	return s.Start <= o.End && o.Start <= s.End
}

func (s TextSpan) String() string {
	return fmt.Sprintf("[%d..%d)", s.Start, s.End)
}

// SyntaxTree is the parsed form of a document: line starts for position
// mapping plus the spans of syntax errors found by the parser.
type SyntaxTree struct {
	Document   *workspace.Document
	LineStarts []int
	Errors     []TextSpan
}

// NewSyntaxTree indexes the document's lines.
func NewSyntaxTree(doc *workspace.Document, errors []TextSpan) *SyntaxTree {
	starts := []int{0}
	for i := 0; i < len(doc.Text); i++ {
		if doc.Text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &SyntaxTree{Document: doc, LineStarts: starts, Errors: errors}
}

// LineCount returns the number of lines.
func (t *SyntaxTree) LineCount() int {
	return len(t.LineStarts)
}

// Position maps a byte offset to a 1-based line and column.
func (t *SyntaxTree) Position(offset int) (line, column int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(t.Document.Text) {
		offset = len(t.Document.Text)
	}
	i := sort.Search(len(t.LineStarts), func(i int) bool { return t.LineStarts[i] > offset }) - 1
	return i + 1, offset - t.LineStarts[i] + 1
}

// LineSpan returns the span of 1-based line, excluding the newline.
func (t *SyntaxTree) LineSpan(line int) TextSpan {
	if line < 1 || line > len(t.LineStarts) {
		return TextSpan{}
	}
	start := t.LineStarts[line-1]
	end := len(t.Document.Text)
	if line < len(t.LineStarts) {
		end = t.LineStarts[line] - 1
	}
	return TextSpan{Start: start, End: end}
}

// LineText returns the text of 1-based line without its newline.
func (t *SyntaxTree) LineText(line int) string {
	s := t.LineSpan(line)
	return t.Document.Text[s.Start:s.End]
}

// Location builds a location for span in this tree's document.
func (t *SyntaxTree) Location(span TextSpan) *Location {
	line, col := t.Position(span.Start)
	return &Location{
		DocumentID: t.Document.ID,
		Path:       t.Document.Path,
		Span:       span,
		Line:       line,
		Column:     col,
	}
}
