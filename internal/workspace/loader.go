package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"diaghost/internal/errors"
	"diaghost/internal/paths"
)

// MaxDocumentSize is the largest file the loader reads into a snapshot.
const MaxDocumentSize = 1 << 20

// alwaysSkipped directories are never part of a project.
var alwaysSkipped = map[string]bool{
	".git":            true,
	paths.DataDirName: true,
}

// Loader builds solution snapshots from a workspace manifest.
type Loader struct {
	root     string
	manifest string
	logger   *slog.Logger
}

// NewLoader creates a loader. manifest is the manifest file name relative to root.
func NewLoader(root, manifest string, logger *slog.Logger) *Loader {
	if manifest == "" {
		manifest = "diaghost.toml"
	}
	return &Loader{root: root, manifest: manifest, logger: logger}
}

// Root returns the workspace root.
func (l *Loader) Root() string {
	return l.root
}

// ManifestPath returns the absolute path of the manifest.
func (l *Loader) ManifestPath() string {
	return filepath.Join(l.root, l.manifest)
}

// Load reads the manifest and every project's documents into a fresh solution.
func (l *Loader) Load(ctx context.Context) (*Solution, error) {
	start := time.Now()

	manifestPath := l.ManifestPath()
	m, err := ReadManifest(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewDiagError(errors.InvalidRequest,
				fmt.Sprintf("workspace manifest %s not found", l.manifest), err)
		}
		return nil, errors.NewDiagError(errors.InvalidRequest, "invalid workspace manifest", err)
	}

	projects := make([]*Project, 0, len(m.Projects))
	for _, pm := range m.Projects {
		p, err := l.loadProject(ctx, pm)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}

	s := NewSolution(l.root, m.Analyzers, projects...)

	l.logger.Debug("Workspace loaded",
		"checksum", s.Checksum.Short(),
		"projects", len(s.Projects),
		"documents", s.DocumentCount(),
		"duration", time.Since(start),
	)
	return s, nil
}

func (l *Loader) loadProject(ctx context.Context, pm ProjectManifest) (*Project, error) {
	projectRoot := filepath.Join(l.root, filepath.FromSlash(pm.Root))
	info, err := os.Stat(projectRoot)
	if err != nil {
		return nil, errors.NewDiagError(errors.ProjectNotFound,
			fmt.Sprintf("project %q root not found", pm.Name), err)
	}
	if !info.IsDir() {
		return nil, errors.NewDiagError(errors.ProjectNotFound,
			fmt.Sprintf("project %q root is not a directory", pm.Name), nil)
	}

	include := pm.Include
	if len(include) == 0 {
		include = LanguageExtensions(pm.Language)
	}

	p := NewProject(pm.Name, strings.ToLower(pm.Language), projectRoot, pm.Analyzers)

	err = filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path != projectRoot && (alwaysSkipped[name] || matchesAny(pm.Exclude, name)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasExtension(name, include) || matchesAny(pm.Exclude, name) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.Size() > MaxDocumentSize {
			l.logger.Debug("Skipping large document", "path", path, "size", fi.Size())
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		p.AddDocument(filepath.ToSlash(rel), path, string(data))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("load project %q: %w", pm.Name, err)
	}

	return p, nil
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// matchesAny reports whether name equals or glob-matches one of the patterns.
func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if pattern == name {
			return true
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
