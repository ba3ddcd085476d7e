package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diaghost/internal/api"
	"diaghost/internal/config"
	"diaghost/internal/paths"
	"diaghost/internal/slogutil"
	"diaghost/internal/storage"
	"diaghost/internal/telemetry"
	"diaghost/internal/watcher"

	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the diagnostics HTTP server",
	Long: `Start the diaghost HTTP server. The server loads the workspace manifest,
keeps recent snapshots, reloads on file changes and periodically stores
expensive-analyzer reports in .diaghost/diaghost.db.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default: server.addr from config)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Disable reloading on file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	console := consoleLogger()

	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	cfg := loadConfig(root, console)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	factory := slogutil.NewLoggerFactory(root, cfg, cliLevel())
	defer factory.Close()
	logger := slog.New(slogutil.NewTeeHandler(console.Handler(), factory.ServerLogger().Handler()))
	computeLogger := factory.ComputeLogger()

	db, err := storage.Open(paths.DataDir(root), logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	h := newHost(root, cfg, computeLogger)

	reporter := telemetry.NewReporter(h.tracker, db, logger, reporterConfig(cfg))
	reporter.Start()
	defer func() {
		if err := reporter.Stop(5 * time.Second); err != nil {
			logger.Warn("Reporter did not stop cleanly", "error", err.Error())
		}
	}()

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), time.Minute)
	if _, err := h.reload(loadCtx); err != nil {
		// The server stays up so a fixed manifest can be picked up by a reload.
		logger.Warn("Initial workspace load failed", "error", err.Error())
	}
	cancelLoad()

	w := watcher.New(watcherConfig(cfg), logger, func(dir string, events []watcher.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		logger.Debug("Workspace changed", "root", dir, "events", len(events))
		if _, err := h.reload(ctx); err != nil {
			logger.Warn("Workspace reload failed", "error", err.Error())
		}
	})
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Watch(h.loader.Root()); err != nil {
		logger.Warn("Failed to watch workspace", "root", h.loader.Root(), "error", err.Error())
	}

	server := api.NewServer(cfg.Server.Addr, api.Deps{
		Service:   h.service,
		Telemetry: h.telemetry,
		Store:     db,
		Reload:    h.reload,
	}, logger, cfg.Server)

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "diaghost listening on http://%s\n", cfg.Server.Addr)
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", "error", err.Error())
			return err
		}
	case sig := <-shutdown:
		logger.Info("Received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error during shutdown", "error", err.Error())
			return err
		}
		logger.Info("Server stopped gracefully")
	}

	return nil
}

func watcherConfig(cfg *config.Config) watcher.Config {
	return watcher.Config{
		Enabled:        cfg.Watcher.Enabled && !serveNoWatch,
		PollInterval:   time.Duration(cfg.Watcher.PollIntervalMs) * time.Millisecond,
		Debounce:       time.Duration(cfg.Watcher.DebounceMs) * time.Millisecond,
		IgnorePatterns: cfg.Watcher.IgnorePatterns,
	}
}
