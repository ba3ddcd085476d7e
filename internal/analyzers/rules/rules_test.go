package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"diaghost/internal/analyzers"
	"diaghost/internal/workspace"
)

func writeRules(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeRules(t, "lint.yaml", `
rules:
  - id: no-println
    message: use the logger
    pattern: 'fmt\.Println'
    severity: error
  - id: no-tabs
    pattern: '\t'
    kind: syntax
`)

	as, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(as) != 2 {
		t.Fatalf("len = %d, want 2", len(as))
	}
	if as[0].ID() != "rules/lint/no-println" {
		t.Errorf("ID() = %q", as[0].ID())
	}
	if !analyzers.RunsFor(as[0], analyzers.Semantic) || analyzers.RunsFor(as[0], analyzers.Syntax) {
		t.Error("rules default to semantic")
	}
	if !analyzers.RunsFor(as[1], analyzers.Syntax) {
		t.Error("no-tabs should be a syntax rule")
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeRules(t, "style.toml", `
[[rules]]
id = "no-panic"
pattern = 'panic\('
`)

	as, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(as) != 1 || as[0].ID() != "rules/style/no-panic" {
		t.Fatalf("analyzers = %v", as)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing id", "rules:\n  - pattern: x\n"},
		{"bad regexp", "rules:\n  - id: a\n    pattern: '('\n"},
		{"empty pattern", "rules:\n  - id: a\n"},
		{"duplicate", "rules:\n  - id: a\n    pattern: x\n  - id: a\n    pattern: y\n"},
		{"bad kind", "rules:\n  - id: a\n    pattern: x\n    kind: project\n"},
		{"unknown field", "rules:\n  - id: a\n    pattern: x\n    colour: red\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeRules(t, "r.yaml", tt.content)); err == nil {
				t.Error("Load() should fail")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

type singleDoc struct {
	project *workspace.Project
	tree    *analyzers.SyntaxTree
}

func (s *singleDoc) Project() *workspace.Project       { return s.project }
func (s *singleDoc) Tree(string) *analyzers.SyntaxTree { return s.tree }

func TestAnalyzer_Analyze(t *testing.T) {
	as, err := Compile("lint", []Rule{{ID: "no-println", Pattern: `fmt\.Println`, Message: "use the logger"}})
	if err != nil {
		t.Fatal(err)
	}

	p := workspace.NewProject("core", "go", "", nil)
	doc := p.AddDocument("main.go", "main.go", "package main\n\tfmt.Println(1)\n\tlog.Print(2)\n")
	c := &singleDoc{project: p, tree: analyzers.NewSyntaxTree(doc, nil)}

	var got []analyzers.Diagnostic
	pass := analyzers.NewPass(c, doc, analyzers.Semantic, nil, func(d analyzers.Diagnostic) { got = append(got, d) })
	if err := as[0].Analyze(context.Background(), pass); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(got))
	}
	d := got[0]
	if d.ID != "no-println" || d.Severity != analyzers.SeverityWarning || d.Message != "use the logger" {
		t.Errorf("diagnostic = %+v", d)
	}
	if d.Location.Line != 2 || d.Location.Column != 2 {
		t.Errorf("location = %d:%d, want 2:2", d.Location.Line, d.Location.Column)
	}
}
