package main

import (
	"os"

	"diaghost/internal/slogutil"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger := slogutil.NewLogger(os.Stderr, slogutil.LevelFromVerbosity(verbosity, quiet))
		logger.Error("Command execution failed", "error", err.Error())
		os.Exit(1)
	}
}
