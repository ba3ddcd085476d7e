package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"diaghost/internal/analyzers"
	"diaghost/internal/diagnostics"

	"github.com/spf13/cobra"
)

var (
	analyzeProject       string
	analyzeDocument      string
	analyzeKind          string
	analyzeSpan          string
	analyzeExplicit      bool
	analyzeAnalyzers     string
	analyzeHostAnalyzers string
	analyzeTelemetry     bool
	analyzeFormat        string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute diagnostics for a project or document",
	Long: `Load the workspace and compute diagnostics once. Without --analyzers and
--host-analyzers every analyzer attached to the project runs.`,
	Example: `  diaghost analyze --project core
  diaghost analyze --project core --document core/a.go --kind syntax
  diaghost analyze --project core --document core/a.go --span 0:120 --explicit`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeProject, "project", "", "Project id (required)")
	analyzeCmd.Flags().StringVar(&analyzeDocument, "document", "", "Document id; empty analyzes the whole project")
	analyzeCmd.Flags().StringVar(&analyzeKind, "kind", "", "Analysis kind: syntax, semantic or empty for both")
	analyzeCmd.Flags().StringVar(&analyzeSpan, "span", "", "Byte range start:end within the document")
	analyzeCmd.Flags().BoolVar(&analyzeExplicit, "explicit", false, "Run at high priority")
	analyzeCmd.Flags().StringVar(&analyzeAnalyzers, "analyzers", "", "Comma-separated project analyzer ids")
	analyzeCmd.Flags().StringVar(&analyzeHostAnalyzers, "host-analyzers", "", "Comma-separated host analyzer ids")
	analyzeCmd.Flags().BoolVar(&analyzeTelemetry, "telemetry", false, "Include per-analyzer telemetry")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "human", "Output format (json, human)")
	_ = analyzeCmd.MarkFlagRequired("project")
}

// AnalyzeResponseCLI is the analyze command output.
type AnalyzeResponseCLI struct {
	Checksum   string                           `json:"checksum"`
	ProjectID  string                           `json:"projectId"`
	DocumentID string                           `json:"documentId,omitempty"`
	Results    *diagnostics.SerializableResults `json:"results"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger := consoleLogger()

	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	cfg := loadConfig(root, logger)

	kind, err := analyzers.ParseAnalysisKind(analyzeKind)
	if err != nil {
		return err
	}
	span, err := parseSpan(analyzeSpan)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	h := newHost(root, cfg, logger)
	if _, err := h.reload(ctx); err != nil {
		return err
	}

	req, err := h.service.Resolve(diagnostics.Query{
		ProjectID:          analyzeProject,
		DocumentID:         analyzeDocument,
		Span:               span,
		Kind:               kind,
		Explicit:           analyzeExplicit,
		ProjectAnalyzerIDs: splitList(analyzeAnalyzers),
		HostAnalyzerIDs:    splitList(analyzeHostAnalyzers),
		GetTelemetry:       analyzeTelemetry,
	})
	if err != nil {
		return err
	}
	if len(req.ProjectAnalyzerIDs) == 0 && len(req.HostAnalyzerIDs) == 0 {
		hostIDs, projectIDs, err := h.service.ListAnalyzers(ctx, req.Checksum, req.Project)
		if err != nil {
			return err
		}
		req.HostAnalyzerIDs, req.ProjectAnalyzerIDs = hostIDs, projectIDs
	}

	results, err := h.service.ComputeDiagnostics(ctx, req)
	if err != nil {
		return err
	}

	resp := &AnalyzeResponseCLI{
		Checksum:   req.Checksum.String(),
		ProjectID:  req.Project.ID,
		DocumentID: analyzeDocument,
		Results:    results,
	}
	output, err := FormatResponse(resp, OutputFormat(analyzeFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

// parseSpan parses "start:end". An empty string means no span.
func parseSpan(s string) (*analyzers.TextSpan, error) {
	if s == "" {
		return nil, nil
	}
	startStr, endStr, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("invalid span %q: want start:end", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return nil, fmt.Errorf("invalid span start %q: %w", startStr, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(endStr))
	if err != nil {
		return nil, fmt.Errorf("invalid span end %q: %w", endStr, err)
	}
	span := &analyzers.TextSpan{Start: start, End: end}
	if !span.Valid() {
		return nil, fmt.Errorf("invalid span %q: start must be non-negative and not after end", s)
	}
	return span, nil
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
