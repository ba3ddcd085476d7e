package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"diaghost/internal/analyzers"
	"diaghost/internal/analyzers/builtin"
	"diaghost/internal/analyzers/rules"
	"diaghost/internal/errors"
	"diaghost/internal/workspace"
)

// Provider produces compilations and resolves analyzer references.
type Provider interface {
	// Compile parses every document of the project.
	Compile(ctx context.Context, project *workspace.Project) (*Compilation, error)
	// ResolveReference instantiates the analyzers a reference names. Rule
	// file paths are relative to baseDir.
	ResolveReference(ctx context.Context, ref workspace.AnalyzerReference, baseDir string) ([]analyzers.Analyzer, error)
}

// DefaultProvider parses documents with tree-sitter (when built with cgo)
// and resolves builtin and rules references.
type DefaultProvider struct {
	parallelism int
	logger      *slog.Logger
}

// NewDefaultProvider creates a provider parsing up to parallelism documents at once.
func NewDefaultProvider(parallelism int, logger *slog.Logger) *DefaultProvider {
	if parallelism < 1 {
		parallelism = 1
	}
	return &DefaultProvider{parallelism: parallelism, logger: logger}
}

// Compile parses the project's documents concurrently.
func (p *DefaultProvider) Compile(ctx context.Context, project *workspace.Project) (*Compilation, error) {
	start := time.Now()

	trees := make([]*analyzers.SyntaxTree, len(project.Documents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)

	for i, doc := range project.Documents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			spans, err := parseErrors(gctx, project.Language, []byte(doc.Text))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// Unparseable documents still get a tree so line-based analyzers run.
				p.logger.Debug("Parse failed", "document", doc.ID, "error", err)
			}
			trees[i] = analyzers.NewSyntaxTree(doc, spans)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewDiagError(errors.CompilationFailed,
			fmt.Sprintf("compiling project %s", project.ID), err)
	}

	byID := make(map[string]*analyzers.SyntaxTree, len(trees))
	for _, t := range trees {
		byID[t.Document.ID] = t
	}
	c := NewCompilation(project, byID)

	p.logger.Debug("Project compiled",
		"project", project.ID,
		"documents", len(trees),
		"syntaxErrors", c.ErrorCount(),
		"treeSitter", TreeSitterAvailable(),
		"duration", time.Since(start),
	)
	return c, nil
}

// ResolveReference instantiates builtin analyzers by name and loads rule files.
func (p *DefaultProvider) ResolveReference(ctx context.Context, ref workspace.AnalyzerReference, baseDir string) ([]analyzers.Analyzer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		as  []analyzers.Analyzer
		err error
	)
	switch ref.Kind {
	case workspace.KindBuiltin:
		as, err = builtin.Resolve(ref.Name)
	case workspace.KindRules:
		path := ref.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, filepath.FromSlash(path))
		}
		as, err = rules.Load(path)
	default:
		err = fmt.Errorf("unknown reference kind %q", ref.Kind)
	}
	if err != nil {
		return nil, errors.NewDiagError(errors.AnalyzerLoadFailed,
			fmt.Sprintf("resolving analyzer reference %s", ref.Key()), err)
	}
	return as, nil
}
