//go:build !cgo

package analysis

import (
	"context"

	"diaghost/internal/analyzers"
)

// TreeSitterAvailable reports whether syntax errors are detected.
// Returns false when CGO is disabled.
func TreeSitterAvailable() bool {
	return false
}

// parseErrors is a no-op without tree-sitter; documents parse without errors.
func parseErrors(context.Context, string, []byte) ([]analyzers.TextSpan, error) {
	return nil, nil
}
