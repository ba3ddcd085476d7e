package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"diaghost/internal/analysis"
	"diaghost/internal/analyzers"
	"diaghost/internal/workspace"
)

// CacheOptions configure a CompilationCache.
type CacheOptions struct {
	// Disabled turns every request into a fresh build that is never stored.
	Disabled bool
	// MaxParallelism bounds concurrently running analyzers per request.
	MaxParallelism int
	Logger         *slog.Logger
}

// CacheEntry pairs a compilation with the analyzers attached to it. It is
// immutable once built and shared by every request that hits it.
type CacheEntry struct {
	Checksum                 workspace.Checksum
	Project                  *workspace.Project
	HostAnalyzers            []analyzers.Analyzer
	ProjectAnalyzers         []analyzers.Analyzer
	Index                    *analyzers.IDIndex
	CompilationWithAnalyzers *analysis.CompilationWithAnalyzers
	BuiltAt                  time.Time

	builtIn map[analyzers.Analyzer]bool
}

// IsBuiltIn reports whether a came from a built-in analyzer reference.
func (e *CacheEntry) IsBuiltIn(a analyzers.Analyzer) bool {
	return e.builtIn[a]
}

// CacheStats counts cache outcomes since the cache was created.
type CacheStats struct {
	Hits            int64  `json:"hits"`
	Misses          int64  `json:"misses"`
	Builds          int64  `json:"builds"`
	Reconciliations int64  `json:"reconciliations"`
	Checksum        string `json:"checksum,omitempty"`
	ProjectID       string `json:"projectId,omitempty"`
}

// CompilationCache holds at most one CacheEntry. A new entry always
// replaces the previous one.
type CompilationCache struct {
	provider analysis.Provider
	opts     CacheOptions
	logger   *slog.Logger
	group    singleflight.Group

	mu    sync.Mutex
	entry *CacheEntry
	stats CacheStats
}

// NewCompilationCache creates an empty cache over provider.
func NewCompilationCache(provider analysis.Provider, opts CacheOptions) *CompilationCache {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &CompilationCache{provider: provider, opts: opts, logger: opts.Logger}
}

// GetOrCreate returns the entry for project at checksum together with the
// document to analyze.
//
// When the cached entry has the same checksum and project id but a
// different project instance, project and document are first swapped for
// the cached instances, and the returned document is the swapped one. A
// nil document requests the whole project, which is always built fresh and
// never stored.
func (c *CompilationCache) GetOrCreate(ctx context.Context, checksum workspace.Checksum, project *workspace.Project, document *workspace.Document) (*CacheEntry, *workspace.Document, error) {
	c.mu.Lock()
	if e := c.entry; e != nil && e.Checksum == checksum && e.Project != project && e.Project.ID == project.ID {
		project = e.Project
		if document != nil {
			if cached := project.Document(document.ID); cached != nil {
				document = cached
			}
		}
		c.stats.Reconciliations++
	}

	if document == nil || c.opts.Disabled {
		c.stats.Builds++
		c.mu.Unlock()
		entry, err := c.build(ctx, checksum, project)
		return entry, document, err
	}

	if e := c.entry; e != nil && e.Checksum == checksum && e.Project == project {
		c.stats.Hits++
		c.mu.Unlock()
		return e, document, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	key := fmt.Sprintf("%s/%s/%p", checksum, project.ID, project)
	// The build outlives a cancelled caller so the next request can reuse it.
	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.Lock()
		c.stats.Builds++
		c.mu.Unlock()

		entry, err := c.build(context.WithoutCancel(ctx), checksum, project)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entry = entry
		c.mu.Unlock()
		return entry, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, nil, res.Err
		}
		return res.Val.(*CacheEntry), document, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (c *CompilationCache) build(ctx context.Context, checksum workspace.Checksum, project *workspace.Project) (*CacheEntry, error) {
	start := time.Now()

	comp, err := c.provider.Compile(ctx, project)
	if err != nil {
		return nil, err
	}

	// Host references are relative to the workspace root, project
	// references to the project root.
	hostDir := project.Root
	var hostRefs []workspace.AnalyzerReference
	if project.Solution != nil {
		hostDir = project.Solution.Root
		hostRefs = project.Solution.AnalyzerReferences
	}

	entry := &CacheEntry{
		Checksum: checksum,
		Project:  project,
		BuiltAt:  time.Now(),
		builtIn:  make(map[analyzers.Analyzer]bool),
	}

	seen := make(map[string]bool, len(hostRefs)+len(project.AnalyzerReferences))
	resolve := func(refs []workspace.AnalyzerReference, baseDir string) ([]analyzers.Analyzer, error) {
		var out []analyzers.Analyzer
		for _, ref := range refs {
			if seen[ref.Key()] {
				continue
			}
			seen[ref.Key()] = true
			as, err := c.provider.ResolveReference(ctx, ref, baseDir)
			if err != nil {
				return nil, err
			}
			for _, a := range as {
				entry.builtIn[a] = ref.IsBuiltIn()
			}
			out = append(out, as...)
		}
		return out, nil
	}

	if entry.HostAnalyzers, err = resolve(hostRefs, hostDir); err != nil {
		return nil, err
	}
	if entry.ProjectAnalyzers, err = resolve(project.AnalyzerReferences, project.Root); err != nil {
		return nil, err
	}

	all := make([]analyzers.Analyzer, 0, len(entry.HostAnalyzers)+len(entry.ProjectAnalyzers))
	all = append(all, entry.HostAnalyzers...)
	all = append(all, entry.ProjectAnalyzers...)
	entry.Index = analyzers.NewIDIndex(all)
	entry.CompilationWithAnalyzers = analysis.NewCompilationWithAnalyzers(comp, all, analysis.Options{
		MaxParallelism: c.opts.MaxParallelism,
		Logger:         c.logger,
	})

	c.logger.Debug("Cache entry built",
		"project", project.ID,
		"checksum", checksum.Short(),
		"analyzers", entry.Index.Len(),
		"duration", time.Since(start),
	)
	return entry, nil
}

// Current returns the cached entry, or nil.
func (c *CompilationCache) Current() *CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry
}

// Stats returns a copy of the counters and the cached key.
func (c *CompilationCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	if c.entry != nil {
		s.Checksum = c.entry.Checksum.String()
		s.ProjectID = c.entry.Project.ID
	}
	return s
}

// Clear drops the cached entry.
func (c *CompilationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
}
