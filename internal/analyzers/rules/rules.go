// Package rules loads project-defined analyzers from rule files. Each rule is
// a regular expression matched line by line. Rule analyzers are third-party:
// their ids are hashed in telemetry.
package rules

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"diaghost/internal/analyzers"
)

// File is a decoded rule file.
//
//	rules:
//	  - id: no-println
//	    message: use the logger
//	    pattern: 'fmt\.Println'
//	    severity: warning
//	    kind: semantic
type File struct {
	Rules []Rule `yaml:"rules" toml:"rules"`
}

// Rule declares one pattern analyzer.
type Rule struct {
	ID       string `yaml:"id" toml:"id"`
	Message  string `yaml:"message" toml:"message"`
	Pattern  string `yaml:"pattern" toml:"pattern"`
	Severity string `yaml:"severity" toml:"severity"`
	Kind     string `yaml:"kind" toml:"kind"` // syntax or semantic (default)
}

// Analyzer runs one rule.
type Analyzer struct {
	id       string
	ruleID   string
	message  string
	severity analyzers.Severity
	kind     analyzers.AnalysisKind
	pattern  *regexp.Regexp
}

func (a *Analyzer) ID() string                      { return a.id }
func (a *Analyzer) Kinds() []analyzers.AnalysisKind { return []analyzers.AnalysisKind{a.kind} }

// Analyze reports every line of the document matching the pattern.
func (a *Analyzer) Analyze(ctx context.Context, pass *analyzers.Pass) error {
	if pass.Tree == nil {
		return nil
	}
	for line := 1; line <= pass.Tree.LineCount(); line++ {
		if line%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		text := pass.Tree.LineText(line)
		loc := a.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		start := pass.Tree.LineStarts[line-1]
		pass.ReportAt(a.ruleID, a.severity,
			analyzers.TextSpan{Start: start + loc[0], End: start + loc[1]}, a.message)
	}
	return nil
}

// Load reads a rule file and returns one analyzer per rule. The format
// follows the extension: .toml is TOML, anything else is YAML.
func Load(path string) ([]analyzers.Analyzer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
	}

	return Compile(fileStem(path), f.Rules)
}

// Compile builds analyzers for rules under the given set name.
func Compile(set string, rules []Rule) ([]analyzers.Analyzer, error) {
	out := make([]analyzers.Analyzer, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule set %s: rule without id", set)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("rule set %s: duplicate rule %q", set, r.ID)
		}
		seen[r.ID] = true

		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s/%s: %w", set, r.ID, err)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %s/%s: empty pattern", set, r.ID)
		}

		kind := analyzers.Semantic
		if r.Kind != "" {
			kind, err = analyzers.ParseAnalysisKind(r.Kind)
			if err != nil || kind == analyzers.Unspecified {
				return nil, fmt.Errorf("rule %s/%s: kind must be syntax or semantic", set, r.ID)
			}
		}

		message := r.Message
		if message == "" {
			message = fmt.Sprintf("matches %s", r.Pattern)
		}

		out = append(out, &Analyzer{
			id:       "rules/" + set + "/" + r.ID,
			ruleID:   r.ID,
			message:  message,
			severity: analyzers.ParseSeverity(r.Severity),
			kind:     kind,
			pattern:  re,
		})
	}
	return out, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
