//go:build cgo

package analysis

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"diaghost/internal/analyzers"
)

// TreeSitterAvailable reports whether syntax errors are detected.
func TreeSitterAvailable() bool {
	return true
}

// parseErrors parses source and returns the spans of error and missing
// nodes. Languages without a grammar have no syntax errors.
func parseErrors(ctx context.Context, language string, source []byte) ([]analyzers.TextSpan, error) {
	lang := getLanguage(language)
	if lang == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}
	return collectErrors(root, nil), nil
}

func collectErrors(n *sitter.Node, out []analyzers.TextSpan) []analyzers.TextSpan {
	if n.IsError() || n.IsMissing() {
		return append(out, analyzers.TextSpan{Start: int(n.StartByte()), End: int(n.EndByte())})
	}
	if !n.HasError() {
		return out
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		out = collectErrors(n.Child(i), out)
	}
	return out
}

func getLanguage(language string) *sitter.Language {
	switch language {
	case "go":
		return golang.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "tsx":
		return tsx.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "rust":
		return rust.GetLanguage()
	case "java":
		return java.GetLanguage()
	case "kotlin":
		return kotlin.GetLanguage()
	default:
		return nil
	}
}
