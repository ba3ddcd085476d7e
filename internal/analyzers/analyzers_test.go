package analyzers

import (
	"context"
	"testing"

	"diaghost/internal/workspace"
)

type stubAnalyzer struct {
	id    string
	kinds []AnalysisKind
}

func (s *stubAnalyzer) ID() string                           { return s.id }
func (s *stubAnalyzer) Analyze(context.Context, *Pass) error { return nil }

type kindedAnalyzer struct{ stubAnalyzer }

func (k *kindedAnalyzer) Kinds() []AnalysisKind { return k.kinds }

func TestIDIndex(t *testing.T) {
	a := &stubAnalyzer{id: "A"}
	b := &stubAnalyzer{id: "B"}
	dupA := &stubAnalyzer{id: "A"}

	idx := NewIDIndex([]Analyzer{a, b, dupA})

	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}
	if got, ok := idx.Analyzer("A"); !ok || got != a {
		t.Error("first analyzer with a duplicate id should win")
	}
	if _, ok := idx.ID(dupA); ok {
		t.Error("shadowed duplicate should not be indexed")
	}
	if id, ok := idx.ID(b); !ok || id != "B" {
		t.Errorf("ID(b) = %q, %v", id, ok)
	}
	if ids := idx.IDs(); len(ids) != 2 || ids[0] != "A" || ids[1] != "B" {
		t.Errorf("IDs() = %v, want [A B]", ids)
	}
}

func TestIDIndex_Resolve(t *testing.T) {
	a := &stubAnalyzer{id: "A"}
	b := &stubAnalyzer{id: "B"}
	idx := NewIDIndex([]Analyzer{a, b})

	tests := []struct {
		name string
		ids  []string
		want []Analyzer
	}{
		{"empty", nil, nil},
		{"input order", []string{"B", "A"}, []Analyzer{b, a}},
		{"unknown skipped", []string{"X", "A"}, []Analyzer{a}},
		{"repeats collapsed", []string{"A", "A", "B"}, []Analyzer{a, b}},
		{"all unknown", []string{"X", "Y"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Resolve(tt.ids)
			if len(got) != len(tt.want) {
				t.Fatalf("Resolve(%v) returned %d analyzers, want %d", tt.ids, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Resolve(%v)[%d] = %s, want %s", tt.ids, i, got[i].ID(), tt.want[i].ID())
				}
			}
		})
	}
}

func TestTextSpan(t *testing.T) {
	s := TextSpan{Start: 5, End: 10}

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"contains start", s.Contains(5), true},
		{"excludes end", s.Contains(10), false},
		{"overlap", s.IntersectsWith(TextSpan{Start: 8, End: 20}), true},
		{"touching end", s.IntersectsWith(TextSpan{Start: 10, End: 12}), true},
		{"disjoint", s.IntersectsWith(TextSpan{Start: 11, End: 12}), false},
		{"empty inside", s.IntersectsWith(TextSpan{Start: 7, End: 7}), true},
		{"valid", s.Valid(), true},
		{"reversed invalid", TextSpan{Start: 3, End: 1}.Valid(), false},
		{"negative invalid", TextSpan{Start: -1, End: 1}.Valid(), false},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestSyntaxTree_Positions(t *testing.T) {
	doc := &workspace.Document{ID: "a.go", Path: "/ws/a.go", Text: "ab\ncde\n\nf"}
	tree := NewSyntaxTree(doc, nil)

	if tree.LineCount() != 4 {
		t.Fatalf("LineCount() = %d, want 4", tree.LineCount())
	}

	positions := []struct {
		offset, line, col int
	}{
		{0, 1, 1},
		{2, 1, 3},
		{3, 2, 1},
		{5, 2, 3},
		{7, 3, 1},
		{8, 4, 1},
		{100, 4, 2},
	}
	for _, p := range positions {
		line, col := tree.Position(p.offset)
		if line != p.line || col != p.col {
			t.Errorf("Position(%d) = %d:%d, want %d:%d", p.offset, line, col, p.line, p.col)
		}
	}

	if got := tree.LineText(2); got != "cde" {
		t.Errorf("LineText(2) = %q, want %q", got, "cde")
	}
	if got := tree.LineText(3); got != "" {
		t.Errorf("LineText(3) = %q, want empty", got)
	}
	if got := tree.LineText(4); got != "f" {
		t.Errorf("LineText(4) = %q, want %q", got, "f")
	}

	loc := tree.Location(TextSpan{Start: 4, End: 6})
	if loc.DocumentID != "a.go" || loc.Line != 2 || loc.Column != 2 {
		t.Errorf("Location = %+v", loc)
	}
}

func TestRunsFor(t *testing.T) {
	plain := &stubAnalyzer{id: "plain"}
	syntaxOnly := &kindedAnalyzer{stubAnalyzer{id: "syn", kinds: []AnalysisKind{Syntax}}}

	if !RunsFor(plain, Semantic) || !RunsFor(plain, Project) {
		t.Error("analyzers without a kind filter run for every pass")
	}
	if !RunsFor(syntaxOnly, Syntax) || RunsFor(syntaxOnly, Semantic) {
		t.Error("kind filter should restrict passes")
	}
}

func TestParseAnalysisKind(t *testing.T) {
	tests := []struct {
		in      string
		want    AnalysisKind
		wantErr bool
	}{
		{"", Unspecified, false},
		{"Syntax", Syntax, false},
		{"semantic", Semantic, false},
		{"project", Unspecified, true},
		{"bogus", Unspecified, true},
	}
	for _, tt := range tests {
		got, err := ParseAnalysisKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseAnalysisKind(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestPass_ReportAt(t *testing.T) {
	doc := &workspace.Document{ID: "a.go", Text: "x\ny"}
	var got []Diagnostic
	pass := &Pass{Document: doc, Tree: NewSyntaxTree(doc, nil), Kind: Syntax}
	pass.report = func(d Diagnostic) { got = append(got, d) }

	pass.ReportAt("T1", SeverityInfo, TextSpan{Start: 2, End: 3}, "found y")

	if len(got) != 1 {
		t.Fatalf("reported %d diagnostics, want 1", len(got))
	}
	if got[0].Location == nil || got[0].Location.Line != 2 {
		t.Errorf("diagnostic location = %+v", got[0].Location)
	}
}
