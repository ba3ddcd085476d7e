// Package workspace models immutable snapshots of the analyzed code corpus:
// a Solution holds Projects, a Project holds Documents. A loader builds
// snapshots from a manifest on disk and a Store keeps the recent ones.
package workspace

import (
	"sort"
	"time"
)

// Analyzer reference kinds.
const (
	KindBuiltin = "builtin"
	KindRules   = "rules"
)

// AnalyzerReference describes where analyzers come from. Builtin references
// name a built-in analyzer (or "all"); rules references point at a rule file
// relative to the project root. Two references are the same reference iff
// their values are equal.
type AnalyzerReference struct {
	Kind string `json:"kind" toml:"kind" yaml:"kind"`
	Name string `json:"name,omitempty" toml:"name" yaml:"name,omitempty"`
	Path string `json:"path,omitempty" toml:"path" yaml:"path,omitempty"`
}

// Key returns a stable display key, "kind:name" or "kind:path".
func (r AnalyzerReference) Key() string {
	if r.Name != "" {
		return r.Kind + ":" + r.Name
	}
	return r.Kind + ":" + r.Path
}

// IsBuiltIn reports whether the reference resolves to trusted built-in analyzers.
func (r AnalyzerReference) IsBuiltIn() bool {
	return r.Kind == KindBuiltin
}

// Document is one source file in a project snapshot.
type Document struct {
	ID      string // slash path relative to the workspace root
	Path    string // filesystem path
	Text    string
	Project *Project
}

// Project is one analyzable unit. The pointer identity of a Project is its
// instance identity; two loads of the same content yield distinct instances.
type Project struct {
	ID                 string
	Name               string
	Language           string
	Root               string
	Documents          []*Document
	AnalyzerReferences []AnalyzerReference
	Solution           *Solution

	docs map[string]*Document
}

// NewProject creates an empty project. ID and name are both id.
func NewProject(id, language, root string, refs []AnalyzerReference) *Project {
	return &Project{
		ID:                 id,
		Name:               id,
		Language:           language,
		Root:               root,
		AnalyzerReferences: refs,
		docs:               make(map[string]*Document),
	}
}

// AddDocument appends a document and returns it.
func (p *Project) AddDocument(id, path, text string) *Document {
	d := &Document{ID: id, Path: path, Text: text, Project: p}
	p.Documents = append(p.Documents, d)
	if p.docs == nil {
		p.docs = make(map[string]*Document)
	}
	p.docs[id] = d
	return d
}

// Document looks up a document by id.
func (p *Project) Document(id string) *Document {
	return p.docs[id]
}

// Solution is an immutable snapshot of the whole workspace.
type Solution struct {
	Checksum           Checksum
	Root               string
	Projects           []*Project
	AnalyzerReferences []AnalyzerReference // host-level, shared by every project
	LoadedAt           time.Time

	projects map[string]*Project
}

// NewSolution links projects to a new solution, sorts their documents by id
// and computes the checksum. Projects must not be modified afterwards.
func NewSolution(root string, hostRefs []AnalyzerReference, projects ...*Project) *Solution {
	s := &Solution{
		Root:               root,
		Projects:           projects,
		AnalyzerReferences: hostRefs,
		LoadedAt:           time.Now(),
		projects:           make(map[string]*Project, len(projects)),
	}
	for _, p := range projects {
		p.Solution = s
		sort.Slice(p.Documents, func(i, j int) bool { return p.Documents[i].ID < p.Documents[j].ID })
		s.projects[p.ID] = p
	}
	s.Checksum = ComputeChecksum(s)
	return s
}

// Project looks up a project by id.
func (s *Solution) Project(id string) *Project {
	return s.projects[id]
}

// DocumentCount returns the number of documents across all projects.
func (s *Solution) DocumentCount() int {
	n := 0
	for _, p := range s.Projects {
		n += len(p.Documents)
	}
	return n
}
