package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"diaghost/internal/errors"
	"diaghost/internal/slogutil"
	"diaghost/internal/workspace"
)

func TestDefaultProvider_Compile(t *testing.T) {
	p := workspace.NewProject("core", "go", "", nil)
	p.AddDocument("ok.go", "ok.go", "package ok\n\nfunc A() {}\n")
	p.AddDocument("broken.go", "broken.go", "package broken\n\nfunc {\n")
	workspace.NewSolution("", nil, p)

	provider := NewDefaultProvider(2, slogutil.NewDiscardLogger())
	c, err := provider.Compile(context.Background(), p)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if c.Project() != p {
		t.Error("compilation should reference the project instance")
	}
	for _, d := range p.Documents {
		if c.Tree(d.ID) == nil {
			t.Errorf("missing tree for %s", d.ID)
		}
	}
	if got := len(c.Tree("ok.go").Errors); got != 0 {
		t.Errorf("ok.go has %d syntax errors, want 0", got)
	}
	if TreeSitterAvailable() && len(c.Tree("broken.go").Errors) == 0 {
		t.Error("broken.go should have syntax errors")
	}
}

func TestDefaultProvider_CompileCancelled(t *testing.T) {
	p := workspace.NewProject("core", "go", "", nil)
	p.AddDocument("a.go", "a.go", "package a\n")
	workspace.NewSolution("", nil, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewDefaultProvider(1, slogutil.NewDiscardLogger()).Compile(ctx, p); err != context.Canceled {
		t.Errorf("Compile() error = %v, want context.Canceled", err)
	}
}

func TestDefaultProvider_ResolveReference(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lint.yaml"), []byte("rules:\n  - id: r1\n    pattern: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	provider := NewDefaultProvider(1, slogutil.NewDiscardLogger())
	ctx := context.Background()

	builtins, err := provider.ResolveReference(ctx, workspace.AnalyzerReference{Kind: workspace.KindBuiltin, Name: "all"}, dir)
	if err != nil || len(builtins) == 0 {
		t.Errorf("builtin:all = %d analyzers, %v", len(builtins), err)
	}

	ruled, err := provider.ResolveReference(ctx, workspace.AnalyzerReference{Kind: workspace.KindRules, Path: "lint.yaml"}, dir)
	if err != nil || len(ruled) != 1 || ruled[0].ID() != "rules/lint/r1" {
		t.Errorf("rules:lint.yaml = %v, %v", ruled, err)
	}

	_, err = provider.ResolveReference(ctx, workspace.AnalyzerReference{Kind: workspace.KindRules, Path: "missing.yaml"}, dir)
	if errors.CodeOf(err) != errors.AnalyzerLoadFailed {
		t.Errorf("missing rule file error code = %s, want %s", errors.CodeOf(err), errors.AnalyzerLoadFailed)
	}
}
