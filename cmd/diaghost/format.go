package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"diaghost/internal/diagnostics"

	"github.com/pelletier/go-toml/v2"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
	FormatTOML  OutputFormat = "toml"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	case FormatTOML:
		return formatTOML(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatTOML(resp interface{}) (string, error) {
	data, err := toml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal TOML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *AnalyzeResponseCLI:
		return formatAnalyzeHuman(v), nil
	case *PerfResponseCLI:
		return formatPerfHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatAnalyzeHuman(resp *AnalyzeResponseCLI) string {
	var b strings.Builder
	target := resp.ProjectID
	if resp.DocumentID != "" {
		target += " / " + resp.DocumentID
	}
	fmt.Fprintf(&b, "Diagnostics for %s (snapshot %s)\n", target, shortChecksum(resp.Checksum))

	total := 0
	if resp.Results != nil {
		for _, ad := range resp.Results.Diagnostics {
			total += ad.Diagnostics.Count()
		}
	}
	if total == 0 {
		b.WriteString("\nNo diagnostics.\n")
	} else {
		for _, ad := range resp.Results.Diagnostics {
			fmt.Fprintf(&b, "\n%s (%d)\n", ad.AnalyzerID, ad.Diagnostics.Count())
			writeBucket(&b, "syntax", ad.Diagnostics.Syntax)
			writeBucket(&b, "semantic", ad.Diagnostics.Semantic)
			writeBucket(&b, "non-local", ad.Diagnostics.NonLocal)
			for _, d := range ad.Diagnostics.Other {
				writeDiagnostic(&b, "other", d)
			}
		}
		fmt.Fprintf(&b, "\n%d diagnostic(s)\n", total)
	}

	if resp.Results != nil && len(resp.Results.Telemetry) > 0 {
		b.WriteString("\nTelemetry:\n")
		for _, t := range resp.Results.Telemetry {
			fmt.Fprintf(&b, "  %-32s %8.2fms  %d reported", t.AnalyzerID, t.ExecutionTimeMs, t.DiagnosticCount)
			if t.ExceptionCount > 0 {
				fmt.Fprintf(&b, "  %d failed", t.ExceptionCount)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeBucket(b *strings.Builder, kind string, docs []diagnostics.DocumentDiagnostics) {
	for _, doc := range docs {
		for _, d := range doc.Diagnostics {
			writeDiagnostic(b, kind, d)
		}
	}
}

func writeDiagnostic(b *strings.Builder, kind string, d diagnostics.Diagnostic) {
	location := d.Path
	if location == "" {
		location = d.DocumentID
	}
	if location != "" && d.Line > 0 {
		location = fmt.Sprintf("%s:%d:%d", location, d.Line, d.Column)
	}
	if location == "" {
		location = "-"
	}
	suppressed := ""
	if d.IsSuppressed {
		suppressed = " (suppressed)"
	}
	fmt.Fprintf(b, "  %-9s %-8s %s %s: %s%s\n", kind, d.Severity, location, d.ID, d.Message, suppressed)
}

func formatPerfHuman(resp *PerfResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyzer performance since %s (queue: %s)\n", resp.Since.Format("2006-01-02 15:04"), resp.Queue)

	if len(resp.Analyzers) == 0 {
		b.WriteString("\nNo reports recorded.")
		return b.String()
	}

	b.WriteString("\nAnalyzers (slowest first):\n")
	for _, a := range resp.Analyzers {
		kind := "custom"
		if a.BuiltIn {
			kind = "builtin"
		}
		fmt.Fprintf(&b, "  %-40s %-7s reports=%-4d avg=%.1fms max=%.1fms lof=%.1f\n",
			a.AnalyzerKey, kind, a.Reports, a.AvgAverageMs, a.MaxAverageMs, a.MaxLOF)
	}

	if len(resp.Rows) > 0 {
		fmt.Fprintf(&b, "\nRecent report rows (%d):\n", len(resp.Rows))
		for _, r := range resp.Rows {
			queue := "document"
			if r.ForSpan {
				queue = "span"
			}
			fmt.Fprintf(&b, "  %s  %-8s %-40s avg=%.1fms stddev=%.1fms lof=%.1f\n",
				r.RecordedAt.Format("2006-01-02 15:04:05"), queue, r.AnalyzerKey, r.AverageMs, r.StdDevMs, r.LOF)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortChecksum(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
