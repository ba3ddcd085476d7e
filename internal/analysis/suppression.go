package analysis

import (
	"strings"

	"diaghost/internal/analyzers"
)

// SuppressionMarker in a line comment suppresses diagnostics on that line.
// "diaghost:ignore" alone suppresses every id; "diaghost:ignore A, B"
// suppresses only the listed ids.
const SuppressionMarker = "diaghost:ignore"

// isSuppressed reports whether the line holding d's location carries a
// matching suppression marker.
func isSuppressed(tree *analyzers.SyntaxTree, d analyzers.Diagnostic) bool {
	if tree == nil || d.Location == nil {
		return false
	}
	text := tree.LineText(d.Location.Line)
	i := strings.Index(text, SuppressionMarker)
	if i < 0 {
		return false
	}

	rest := strings.TrimSpace(text[i+len(SuppressionMarker):])
	ids := strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == d.ID {
			return true
		}
	}
	return false
}
