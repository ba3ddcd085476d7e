package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// timeFormat is fixed width so stored timestamps compare as strings.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// PerformanceRow is one analyzer entry of a report.
type PerformanceRow struct {
	AnalyzerKey string
	BuiltIn     bool
	AverageMs   float64
	StdDevMs    float64
	LOF         float64
}

// PerformanceRecord is a stored PerformanceRow.
type PerformanceRecord struct {
	ID          int64     `json:"id"`
	ReportID    string    `json:"reportId"`
	AnalyzerKey string    `json:"analyzerKey"`
	BuiltIn     bool      `json:"builtIn"`
	ForSpan     bool      `json:"forSpan"`
	AverageMs   float64   `json:"averageMs"`
	StdDevMs    float64   `json:"stddevMs"`
	LOF         float64   `json:"lof"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// AnalyzerAggregate summarizes every stored report row of one analyzer.
type AnalyzerAggregate struct {
	AnalyzerKey  string  `json:"analyzerKey"`
	BuiltIn      bool    `json:"builtIn"`
	ReportCount  int64   `json:"reportCount"`
	AvgAverageMs float64 `json:"avgAverageMs"`
	MaxAverageMs float64 `json:"maxAverageMs"`
	MaxLOF       float64 `json:"maxLof"`
}

// RecordPerformanceReport writes all rows of one report in a single
// transaction. An empty report writes nothing.
func (db *DB) RecordPerformanceReport(reportID string, forSpan bool, rows []PerformanceRow) error {
	if len(rows) == 0 {
		return nil
	}
	recordedAt := time.Now().UTC().Format(timeFormat)
	return db.WithTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO analyzer_performance (
				report_id, analyzer_key, builtin, for_span,
				average_ms, stddev_ms, lof, recorded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.Exec(reportID, r.AnalyzerKey, r.BuiltIn, forSpan, r.AverageMs, r.StdDevMs, r.LOF, recordedAt); err != nil {
				return fmt.Errorf("failed to record %s: %w", r.AnalyzerKey, err)
			}
		}
		return nil
	})
}

// GetPerformanceReports returns rows recorded at or after since, newest
// first. A nil forSpan matches both queues; limit <= 0 means no limit.
func (db *DB) GetPerformanceReports(since time.Time, forSpan *bool, limit int) ([]PerformanceRecord, error) {
	query := `
		SELECT id, report_id, analyzer_key, builtin, for_span,
		       average_ms, stddev_ms, lof, recorded_at
		FROM analyzer_performance
		WHERE recorded_at >= ?`
	args := []any{since.UTC().Format(timeFormat)}
	if forSpan != nil {
		query += " AND for_span = ?"
		args = append(args, *forSpan)
	}
	query += " ORDER BY recorded_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PerformanceRecord
	for rows.Next() {
		var r PerformanceRecord
		var recordedAt string
		if err := rows.Scan(
			&r.ID, &r.ReportID, &r.AnalyzerKey, &r.BuiltIn, &r.ForSpan,
			&r.AverageMs, &r.StdDevMs, &r.LOF, &recordedAt,
		); err != nil {
			return nil, err
		}
		r.RecordedAt, _ = time.Parse(timeFormat, recordedAt)
		records = append(records, r)
	}

	return records, rows.Err()
}

// GetAnalyzerAggregates groups rows recorded at or after since by analyzer.
func (db *DB) GetAnalyzerAggregates(since time.Time) (map[string]*AnalyzerAggregate, error) {
	rows, err := db.conn.Query(`
		SELECT
			analyzer_key,
			MAX(builtin),
			COUNT(*),
			AVG(average_ms),
			MAX(average_ms),
			MAX(lof)
		FROM analyzer_performance
		WHERE recorded_at >= ?
		GROUP BY analyzer_key
	`, since.UTC().Format(timeFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*AnalyzerAggregate)
	for rows.Next() {
		var agg AnalyzerAggregate
		if err := rows.Scan(
			&agg.AnalyzerKey,
			&agg.BuiltIn,
			&agg.ReportCount,
			&agg.AvgAverageMs,
			&agg.MaxAverageMs,
			&agg.MaxLOF,
		); err != nil {
			return nil, err
		}
		result[agg.AnalyzerKey] = &agg
	}

	return result, rows.Err()
}

// CleanupOldReports removes rows older than the retention period
func (db *DB) CleanupOldReports(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(timeFormat)
	result, err := db.conn.Exec(`
		DELETE FROM analyzer_performance WHERE recorded_at < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
