package main

import (
	"fmt"
	"sort"
	"time"

	"diaghost/internal/paths"
	"diaghost/internal/storage"

	"github.com/spf13/cobra"
)

var (
	perfDays   int
	perfQueue  string
	perfLimit  int
	perfFormat string
)

var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Show stored expensive-analyzer reports",
	Long: `Read the expensive-analyzer reports that the server stored in
.diaghost/diaghost.db and summarize them per analyzer.`,
	RunE: runPerf,
}

func init() {
	rootCmd.AddCommand(perfCmd)

	perfCmd.Flags().IntVar(&perfDays, "days", 7, "Include reports from the last N days")
	perfCmd.Flags().StringVar(&perfQueue, "queue", "all", "Statistics queue (document, span, all)")
	perfCmd.Flags().IntVar(&perfLimit, "limit", 50, "Maximum report rows to list (0 for no limit)")
	perfCmd.Flags().StringVar(&perfFormat, "format", "human", "Output format (json, human, toml)")
}

// PerfResponseCLI is the perf command output.
type PerfResponseCLI struct {
	Since     time.Time          `json:"since" toml:"since"`
	Queue     string             `json:"queue" toml:"queue"`
	Analyzers []PerfAggregateCLI `json:"analyzers" toml:"analyzers"`
	Rows      []PerfReportRowCLI `json:"rows" toml:"rows"`
}

// PerfAggregateCLI summarizes one analyzer across reports.
type PerfAggregateCLI struct {
	AnalyzerKey  string  `json:"analyzerKey" toml:"analyzer_key"`
	BuiltIn      bool    `json:"builtIn" toml:"builtin"`
	Reports      int64   `json:"reports" toml:"reports"`
	AvgAverageMs float64 `json:"avgAverageMs" toml:"avg_average_ms"`
	MaxAverageMs float64 `json:"maxAverageMs" toml:"max_average_ms"`
	MaxLOF       float64 `json:"maxLof" toml:"max_lof"`
}

// PerfReportRowCLI is one stored report row.
type PerfReportRowCLI struct {
	ReportID    string    `json:"reportId" toml:"report_id"`
	AnalyzerKey string    `json:"analyzerKey" toml:"analyzer_key"`
	ForSpan     bool      `json:"forSpan" toml:"for_span"`
	AverageMs   float64   `json:"averageMs" toml:"average_ms"`
	StdDevMs    float64   `json:"stddevMs" toml:"stddev_ms"`
	LOF         float64   `json:"lof" toml:"lof"`
	RecordedAt  time.Time `json:"recordedAt" toml:"recorded_at"`
}

func runPerf(cmd *cobra.Command, args []string) error {
	logger := consoleLogger()

	if perfDays < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	forSpan, err := parseQueue(perfQueue)
	if err != nil {
		return err
	}

	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	db, err := storage.Open(paths.DataDir(root), logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	since := time.Now().Add(-time.Duration(perfDays) * 24 * time.Hour)
	resp, err := buildPerfResponse(db, since, forSpan, perfLimit)
	if err != nil {
		return err
	}
	resp.Queue = perfQueue

	output, err := FormatResponse(resp, OutputFormat(perfFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

func buildPerfResponse(db *storage.DB, since time.Time, forSpan *bool, limit int) (*PerfResponseCLI, error) {
	records, err := db.GetPerformanceReports(since, forSpan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read reports: %w", err)
	}
	aggregates, err := db.GetAnalyzerAggregates(since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reports: %w", err)
	}

	resp := &PerfResponseCLI{
		Since:     since.UTC(),
		Analyzers: make([]PerfAggregateCLI, 0, len(aggregates)),
		Rows:      make([]PerfReportRowCLI, 0, len(records)),
	}
	for _, agg := range aggregates {
		resp.Analyzers = append(resp.Analyzers, PerfAggregateCLI{
			AnalyzerKey:  agg.AnalyzerKey,
			BuiltIn:      agg.BuiltIn,
			Reports:      agg.ReportCount,
			AvgAverageMs: agg.AvgAverageMs,
			MaxAverageMs: agg.MaxAverageMs,
			MaxLOF:       agg.MaxLOF,
		})
	}
	// Slowest first
	sort.Slice(resp.Analyzers, func(i, j int) bool {
		if resp.Analyzers[i].AvgAverageMs != resp.Analyzers[j].AvgAverageMs {
			return resp.Analyzers[i].AvgAverageMs > resp.Analyzers[j].AvgAverageMs
		}
		return resp.Analyzers[i].AnalyzerKey < resp.Analyzers[j].AnalyzerKey
	})
	for _, r := range records {
		resp.Rows = append(resp.Rows, PerfReportRowCLI{
			ReportID:    r.ReportID,
			AnalyzerKey: r.AnalyzerKey,
			ForSpan:     r.ForSpan,
			AverageMs:   r.AverageMs,
			StdDevMs:    r.StdDevMs,
			LOF:         r.LOF,
			RecordedAt:  r.RecordedAt,
		})
	}
	return resp, nil
}

// parseQueue maps --queue onto the storage filter. "all" matches both queues.
func parseQueue(queue string) (*bool, error) {
	switch queue {
	case "", "all":
		return nil, nil
	case "document":
		v := false
		return &v, nil
	case "span":
		v := true
		return &v, nil
	default:
		return nil, fmt.Errorf("invalid queue %q: want document, span or all", queue)
	}
}
