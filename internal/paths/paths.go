// Package paths resolves the on-disk locations diaghost uses for config, logs and storage.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDirName is the per-workspace directory holding config, logs and the database.
const DataDirName = ".diaghost"

// DataDir returns <root>/.diaghost
func DataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// LogsDir returns <root>/.diaghost/logs
func LogsDir(root string) string {
	return filepath.Join(DataDir(root), "logs")
}

// ConfigPath returns <root>/.diaghost/config.json
func ConfigPath(root string) string {
	return filepath.Join(DataDir(root), "config.json")
}

// DatabasePath returns <root>/.diaghost/diaghost.db
func DatabasePath(root string) string {
	return filepath.Join(DataDir(root), "diaghost.db")
}

// LogPath returns the log file for a subsystem, e.g. <root>/.diaghost/logs/server.log
func LogPath(root, subsystem string) string {
	return filepath.Join(LogsDir(root), subsystem+".log")
}

// EnsureLogsDir creates the logs directory if needed and returns its path.
func EnsureLogsDir(root string) (string, error) {
	dir := LogsDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// CanonicalizePath converts an absolute path to a root-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to the workspace root
// - Converts backslashes to forward slashes
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		// If the file doesn't exist yet, use the path as-is
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if os.IsNotExist(err) {
			rootResolved = root
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithinRoot checks if a path is within the workspace root
func IsWithinRoot(path string, root string) bool {
	canonical, err := CanonicalizePath(path, root)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// IsDataDir reports whether a canonical (slash) path lies inside the .diaghost directory.
func IsDataDir(canonicalPath string) bool {
	return canonicalPath == DataDirName || strings.HasPrefix(canonicalPath, DataDirName+"/")
}
