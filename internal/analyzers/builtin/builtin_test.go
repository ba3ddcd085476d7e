package builtin

import (
	"context"
	"strings"
	"testing"

	"diaghost/internal/analyzers"
	"diaghost/internal/workspace"
)

type fakeCompilation struct {
	project *workspace.Project
	trees   map[string]*analyzers.SyntaxTree
}

func newFakeCompilation(docs map[string]string) *fakeCompilation {
	p := workspace.NewProject("core", "go", "", nil)
	c := &fakeCompilation{project: p, trees: make(map[string]*analyzers.SyntaxTree)}
	for id, text := range docs {
		d := p.AddDocument(id, id, text)
		c.trees[id] = analyzers.NewSyntaxTree(d, nil)
	}
	workspace.NewSolution("", nil, p)
	return c
}

func (c *fakeCompilation) Project() *workspace.Project          { return c.project }
func (c *fakeCompilation) Tree(id string) *analyzers.SyntaxTree { return c.trees[id] }

func run(t *testing.T, a analyzers.Analyzer, c *fakeCompilation, docID string, kind analyzers.AnalysisKind) []analyzers.Diagnostic {
	t.Helper()
	var doc *workspace.Document
	if docID != "" {
		doc = c.project.Document(docID)
	}
	var got []analyzers.Diagnostic
	pass := analyzers.NewPass(c, doc, kind, nil, func(d analyzers.Diagnostic) { got = append(got, d) })
	if err := a.Analyze(context.Background(), pass); err != nil {
		t.Fatalf("%s.Analyze() error = %v", a.ID(), err)
	}
	return got
}

func TestResolve(t *testing.T) {
	all, err := Resolve(All)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(Names()) {
		t.Errorf("Resolve(all) returned %d analyzers, want %d", len(all), len(Names()))
	}

	one, err := Resolve(LineLengthID)
	if err != nil || len(one) != 1 || one[0].ID() != LineLengthID {
		t.Errorf("Resolve(line-length) = %v, %v", one, err)
	}

	again, _ := Resolve(LineLengthID)
	if again[0] == one[0] {
		t.Error("Resolve should return fresh instances")
	}

	if _, err := Resolve("nope"); err == nil {
		t.Error("Resolve(nope) should fail")
	}
}

func TestKinds(t *testing.T) {
	tests := []struct {
		id   string
		kind analyzers.AnalysisKind
	}{
		{SyntaxErrorsID, analyzers.Syntax},
		{LineLengthID, analyzers.Syntax},
		{TrailingWhitespaceID, analyzers.Syntax},
		{TodoCommentsID, analyzers.Semantic},
		{DuplicateContentID, analyzers.Semantic},
		{ProjectSizeID, analyzers.Project},
	}
	for _, tt := range tests {
		as, err := Resolve(tt.id)
		if err != nil {
			t.Fatal(err)
		}
		if !analyzers.RunsFor(as[0], tt.kind) {
			t.Errorf("%s should run for %s passes", tt.id, tt.kind)
		}
	}
}

func TestSyntaxErrors(t *testing.T) {
	c := newFakeCompilation(map[string]string{"a.go": "package a\nfunc {\n"})
	c.trees["a.go"].Errors = []analyzers.TextSpan{{Start: 15, End: 16}}

	got := run(t, &SyntaxErrors{}, c, "a.go", analyzers.Syntax)
	if len(got) != 1 || got[0].Severity != analyzers.SeverityError || got[0].Location.Line != 2 {
		t.Errorf("diagnostics = %+v", got)
	}
}

func TestLineLength(t *testing.T) {
	c := newFakeCompilation(map[string]string{"a.go": "short\n" + strings.Repeat("x", 11) + "\nok"})

	got := run(t, &LineLength{Max: 10}, c, "a.go", analyzers.Syntax)
	if len(got) != 1 || got[0].Location.Line != 2 {
		t.Fatalf("diagnostics = %+v", got)
	}
	if got[0].Location.Span.Len() != 11 {
		t.Errorf("span length = %d, want 11", got[0].Location.Span.Len())
	}
}

func TestTrailingWhitespace(t *testing.T) {
	c := newFakeCompilation(map[string]string{"a.go": "clean\ndirty  \n\t\n"})

	got := run(t, &TrailingWhitespace{}, c, "a.go", analyzers.Syntax)
	if len(got) != 2 {
		t.Fatalf("got %d diagnostics, want 2", len(got))
	}
	if s := got[0].Location.Span; s.Start != 11 || s.End != 13 {
		t.Errorf("first span = %s, want [11..13)", s)
	}
}

func TestTodoComments(t *testing.T) {
	c := newFakeCompilation(map[string]string{"a.go": "x := 1 // TODO(ana): fix\n// FIXMEPLEASE\n// XXX\n"})

	got := run(t, &TodoComments{}, c, "a.go", analyzers.Semantic)
	if len(got) != 2 {
		t.Fatalf("got %d diagnostics, want 2: %+v", len(got), got)
	}
	if got[0].Message != "TODO comment" || got[1].Location.Line != 3 {
		t.Errorf("diagnostics = %+v", got)
	}
}

func TestDuplicateContent(t *testing.T) {
	c := newFakeCompilation(map[string]string{
		"a.go": "package same\n",
		"b.go": "package same\n",
		"c.go": "package other\n",
	})

	got := run(t, &DuplicateContent{}, c, "a.go", analyzers.Semantic)
	if len(got) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(got))
	}
	if got[0].Location.DocumentID != "b.go" {
		t.Errorf("duplicate should be reported on b.go, got %s", got[0].Location.DocumentID)
	}
}

func TestProjectSize(t *testing.T) {
	c := newFakeCompilation(map[string]string{"a.go": "a", "b.go": "b"})

	if got := run(t, &ProjectSize{MaxDocuments: 2}, c, "", analyzers.Project); len(got) != 0 {
		t.Errorf("project at the limit should not be reported, got %+v", got)
	}
	got := run(t, &ProjectSize{MaxDocuments: 1}, c, "", analyzers.Project)
	if len(got) != 1 || got[0].Location != nil {
		t.Errorf("diagnostics = %+v, want one without location", got)
	}
}
