package workspace

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Manifest is the decoded workspace manifest (diaghost.toml or diaghost.yaml).
//
//	analyzers = [{ kind = "builtin", name = "all" }]
//
//	[[projects]]
//	name = "api"
//	root = "services/api"
//	language = "go"
//	analyzers = [{ kind = "rules", path = "lint.yaml" }]
type Manifest struct {
	Analyzers []AnalyzerReference `toml:"analyzers" yaml:"analyzers"`
	Projects  []ProjectManifest   `toml:"projects" yaml:"projects"`
}

// ProjectManifest declares one project.
type ProjectManifest struct {
	Name      string              `toml:"name" yaml:"name"`
	Root      string              `toml:"root" yaml:"root"`
	Language  string              `toml:"language" yaml:"language"`
	Include   []string            `toml:"include" yaml:"include"` // file extensions, e.g. ".go"
	Exclude   []string            `toml:"exclude" yaml:"exclude"` // directory names or globs
	Analyzers []AnalyzerReference `toml:"analyzers" yaml:"analyzers"`
}

// languageExtensions are the default includes per language.
var languageExtensions = map[string][]string{
	"go":         {".go"},
	"python":     {".py"},
	"javascript": {".js", ".jsx", ".mjs"},
	"typescript": {".ts"},
	"tsx":        {".tsx"},
	"rust":       {".rs"},
	"java":       {".java"},
	"kotlin":     {".kt", ".kts"},
	"text":       {".txt", ".md"},
}

// LanguageExtensions returns the default file extensions for a language.
func LanguageExtensions(language string) []string {
	return languageExtensions[strings.ToLower(language)]
}

// ReadManifest decodes a manifest file. The format follows the extension:
// .yaml and .yml are YAML, anything else is TOML.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
	default:
		md, err := toml.Decode(string(data), &m)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decode %s: unknown key %q", filepath.Base(path), undecoded[0].String())
		}
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

// Validate checks project names are unique and references are well formed.
func (m *Manifest) Validate() error {
	if len(m.Projects) == 0 {
		return fmt.Errorf("manifest declares no projects")
	}
	if err := validateRefs(m.Analyzers); err != nil {
		return err
	}

	seen := make(map[string]bool, len(m.Projects))
	for i, p := range m.Projects {
		if p.Name == "" {
			return fmt.Errorf("project %d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate project %q", p.Name)
		}
		seen[p.Name] = true
		if len(p.Include) == 0 && len(LanguageExtensions(p.Language)) == 0 {
			return fmt.Errorf("project %q: unknown language %q and no include extensions", p.Name, p.Language)
		}
		if err := validateRefs(p.Analyzers); err != nil {
			return fmt.Errorf("project %q: %w", p.Name, err)
		}
	}
	return nil
}

func validateRefs(refs []AnalyzerReference) error {
	for _, r := range refs {
		switch r.Kind {
		case KindBuiltin:
			if r.Name == "" {
				return fmt.Errorf("builtin analyzer reference needs a name")
			}
		case KindRules:
			if r.Path == "" {
				return fmt.Errorf("rules analyzer reference needs a path")
			}
		default:
			return fmt.Errorf("unknown analyzer reference kind %q", r.Kind)
		}
	}
	return nil
}
