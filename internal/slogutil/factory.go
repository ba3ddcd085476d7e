package slogutil

import (
	"io"
	"log/slog"

	"diaghost/internal/config"
	"diaghost/internal/paths"
)

// Subsystems with their own log file under .diaghost/logs.
const (
	SubsystemServer  = "server"
	SubsystemCompute = "compute"
)

// LoggerFactory creates appropriately configured loggers for different subsystems.
// It respects the configuration precedence: CLI flags > subsystem config > global config.
type LoggerFactory struct {
	root     string
	config   *config.Config
	cliLevel slog.Level // from CLI flags (0 means not set)
	closers  []io.Closer
}

// NewLoggerFactory creates a new logger factory.
// cliLevel should be 0 if no CLI override was specified.
func NewLoggerFactory(root string, cfg *config.Config, cliLevel slog.Level) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{
		root:     root,
		config:   cfg,
		cliLevel: cliLevel,
	}
}

// ServerLogger creates a logger for the HTTP server.
// Writes to <root>/.diaghost/logs/server.log
func (f *LoggerFactory) ServerLogger() *slog.Logger {
	return f.subsystemLogger(SubsystemServer)
}

// ComputeLogger creates a logger for the diagnostic scheduler and analyzers.
// Writes to <root>/.diaghost/logs/compute.log
func (f *LoggerFactory) ComputeLogger() *slog.Logger {
	return f.subsystemLogger(SubsystemCompute)
}

// subsystemLogger falls back to a discard logger when the log file cannot be opened.
func (f *LoggerFactory) subsystemLogger(subsystem string) *slog.Logger {
	if f.root == "" {
		return NewDiscardLogger()
	}
	if _, err := paths.EnsureLogsDir(f.root); err != nil {
		return NewDiscardLogger()
	}

	logger, closer, err := f.createFileLogger(paths.LogPath(f.root, subsystem), f.EffectiveLevel(subsystem))
	if err != nil {
		return NewDiscardLogger()
	}

	f.closers = append(f.closers, closer)
	return logger
}

// createFileLogger creates a file logger with optional rotation based on config
func (f *LoggerFactory) createFileLogger(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if f.config.Logging.MaxSize != "" {
		return NewFileLoggerWithRotation(path, level, f.config.Logging.MaxSize, f.config.Logging.MaxBackups)
	}
	return NewFileLogger(path, level)
}

// EffectiveLevel returns the effective log level for a subsystem.
// Precedence: CLI flag > subsystem config > global config > default (info)
func (f *LoggerFactory) EffectiveLevel(subsystem string) slog.Level {
	if f.cliLevel != 0 {
		return f.cliLevel
	}

	var subsystemLevel string
	switch subsystem {
	case SubsystemServer:
		subsystemLevel = f.config.Logging.Server
	case SubsystemCompute:
		subsystemLevel = f.config.Logging.Compute
	}

	if subsystemLevel != "" {
		return LevelFromString(subsystemLevel)
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelInfo
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
