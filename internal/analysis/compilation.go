// Package analysis compiles projects into syntax trees and runs analyzers
// over them. CompilationWithAnalyzers is the expensive artifact the
// diagnostics cache holds on to.
package analysis

import (
	"diaghost/internal/analyzers"
	"diaghost/internal/workspace"
)

// Compilation is the parsed form of one project instance.
type Compilation struct {
	project *workspace.Project
	trees   map[string]*analyzers.SyntaxTree
}

// NewCompilation wraps already parsed trees, keyed by document id.
func NewCompilation(project *workspace.Project, trees map[string]*analyzers.SyntaxTree) *Compilation {
	if trees == nil {
		trees = make(map[string]*analyzers.SyntaxTree)
	}
	return &Compilation{project: project, trees: trees}
}

// Project returns the compiled project instance.
func (c *Compilation) Project() *workspace.Project {
	return c.project
}

// Tree returns the syntax tree of a document in the project.
func (c *Compilation) Tree(documentID string) *analyzers.SyntaxTree {
	return c.trees[documentID]
}

// ErrorCount returns the number of syntax errors across all documents.
func (c *Compilation) ErrorCount() int {
	n := 0
	for _, t := range c.trees {
		n += len(t.Errors)
	}
	return n
}
