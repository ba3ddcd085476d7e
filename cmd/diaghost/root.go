package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"diaghost/internal/config"
	"diaghost/internal/slogutil"
	"diaghost/internal/version"

	"github.com/spf13/cobra"
)

var (
	rootFlag     string
	verbosity    int
	quiet        bool
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "diaghost",
	Short: "diaghost - diagnostic computation host",
	Long: `diaghost computes analyzer diagnostics for workspace snapshots. Explicit
requests preempt background ones, compilations are cached per project, and
analyzer timings feed performance reports and deprioritization.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("diaghost version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", ".", "Workspace root directory")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level for subsystem log files: debug, info, warn, error (default: from config)")
}

// workspaceRoot returns the absolute --root directory.
func workspaceRoot() (string, error) {
	return filepath.Abs(rootFlag)
}

// loadConfig reads the configuration under root. A broken config file is
// reported and replaced by defaults so that read-only commands still work.
func loadConfig(root string, logger *slog.Logger) *config.Config {
	cfg, err := config.LoadConfig(root)
	if err != nil {
		logger.Warn("Failed to load config, using defaults", "error", err.Error())
		return config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		logger.Warn("Invalid config, using defaults", "error", err.Error())
		return config.DefaultConfig()
	}
	return cfg
}

// consoleLogger writes to stderr at the level selected by -v and -q.
func consoleLogger() *slog.Logger {
	return slogutil.NewLogger(os.Stderr, slogutil.LevelFromVerbosity(verbosity, quiet))
}

// cliLevel is the --log-level override for subsystem loggers, or 0 when unset.
func cliLevel() slog.Level {
	if logLevelFlag == "" {
		return 0
	}
	return slogutil.LevelFromString(logLevelFlag)
}
