package storage

import (
	"database/sql"
	"errors"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createAnalyzerPerformanceTable(tx); err != nil {
			return err
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}

	db.logger.Info("Running database migrations", "from_version", version, "to_version", currentSchemaVersion)

	// A database without a version predates the schema; create it in place.
	if version == 0 {
		return db.initializeSchema()
	}
	return nil
}

// getSchemaVersion returns 0 when the version table is missing or empty.
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createAnalyzerPerformanceTable stores one row per analyzer per report.
func createAnalyzerPerformanceTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS analyzer_performance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			report_id TEXT NOT NULL,
			analyzer_key TEXT NOT NULL,
			builtin INTEGER NOT NULL DEFAULT 0,
			for_span INTEGER NOT NULL DEFAULT 0,
			average_ms REAL NOT NULL,
			stddev_ms REAL NOT NULL,
			lof REAL NOT NULL,
			recorded_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_analyzer_performance_recorded ON analyzer_performance(recorded_at)",
		"CREATE INDEX IF NOT EXISTS idx_analyzer_performance_key ON analyzer_performance(analyzer_key)",
		"CREATE INDEX IF NOT EXISTS idx_analyzer_performance_report ON analyzer_performance(report_id)",
	}
	for _, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return err
		}
	}
	return nil
}
