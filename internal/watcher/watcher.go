// Package watcher polls a workspace for file changes and reports them in
// debounced batches.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"diaghost/internal/paths"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

// Event represents a file system event. Path is slash-separated and
// relative to the watched root.
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChangeHandler is called with a debounced batch of changes under root.
type ChangeHandler func(root string, events []Event)

// Config contains watcher configuration
type Config struct {
	Enabled        bool
	PollInterval   time.Duration
	Debounce       time.Duration
	IgnorePatterns []string
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		PollInterval:   2 * time.Second,
		Debounce:       500 * time.Millisecond,
		IgnorePatterns: []string{".git", "node_modules", "vendor", "*.log"},
	}
}

// fingerprint identifies one version of a file.
type fingerprint struct {
	size    int64
	modTime time.Time
}

// Watcher watches workspace roots for changes
type Watcher struct {
	config  Config
	logger  *slog.Logger
	handler ChangeHandler
	roots   map[string]*rootWatcher

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

// rootWatcher watches a single root
type rootWatcher struct {
	root   string
	batch  *BatchDebouncer
	files  map[string]fingerprint
	stopCh chan struct{}
}

// New creates a new watcher
func New(config Config, logger *slog.Logger, handler ChangeHandler) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		config:  config,
		logger:  logger,
		handler: handler,
		roots:   make(map[string]*rootWatcher),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start logs the watcher configuration. Roots are polled once added with Watch.
func (w *Watcher) Start() error {
	if !w.config.Enabled {
		w.logger.Info("File watcher is disabled")
		return nil
	}

	w.logger.Info("Starting file watcher",
		"pollInterval", w.config.PollInterval,
		"debounce", w.config.Debounce,
	)
	return nil
}

// Stop stops every root and waits for the pollers to exit. Pending batches
// are dropped.
func (w *Watcher) Stop() error {
	w.logger.Info("Stopping file watcher")
	w.cancel()

	w.mu.Lock()
	for root, rw := range w.roots {
		close(rw.stopCh)
		rw.batch.Cancel()
		delete(w.roots, root)
	}
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("File watcher stopped")
	return nil
}

// Watch starts polling root. Watching a root twice, or watching while the
// watcher is disabled, is a no-op.
func (w *Watcher) Watch(root string) error {
	if !w.config.Enabled {
		return nil
	}

	files, err := w.scan(root)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.roots[root]; exists {
		return nil
	}

	rw := &rootWatcher{
		root:   root,
		files:  files,
		stopCh: make(chan struct{}),
	}
	rw.batch = NewBatchDebouncer(w.config.Debounce, func(events []Event) {
		w.logger.Debug("Workspace changes detected", "root", root, "events", len(events))
		if w.handler != nil {
			w.handler(root, events)
		}
	})
	w.roots[root] = rw

	w.wg.Add(1)
	go w.poll(rw)

	w.logger.Info("Watching workspace", "root", root, "files", len(files))
	return nil
}

// Unwatch stops polling root.
func (w *Watcher) Unwatch(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if rw, exists := w.roots[root]; exists {
		close(rw.stopCh)
		rw.batch.Cancel()
		delete(w.roots, root)
		w.logger.Info("Stopped watching workspace", "root", root)
	}
}

func (w *Watcher) poll(rw *rootWatcher) {
	defer w.wg.Done()

	interval := w.config.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check(rw)
		case <-rw.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

// check rescans one root and queues the differences.
func (w *Watcher) check(rw *rootWatcher) {
	files, err := w.scan(rw.root)
	if err != nil {
		w.logger.Warn("Workspace scan failed", "root", rw.root, "error", err)
		return
	}
	events := diff(rw.files, files, time.Now())

	w.mu.Lock()
	rw.files = files
	w.mu.Unlock()

	for _, e := range events {
		rw.batch.Add(e)
	}
}

// scan fingerprints every file under root that is not ignored.
func (w *Watcher) scan(root string) (map[string]fingerprint, error) {
	files := make(map[string]fingerprint)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) && path != root {
				return nil
			}
			return walkErr
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if w.IsIgnored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		files[rel] = fingerprint{size: info.Size(), modTime: info.ModTime()}
		return nil
	})
	return files, err
}

// diff returns the events turning before into after, ordered by path.
func diff(before, after map[string]fingerprint, now time.Time) []Event {
	var events []Event
	for path, fp := range after {
		old, ok := before[path]
		switch {
		case !ok:
			events = append(events, Event{Type: EventCreate, Path: path, Timestamp: now})
		case old.size != fp.size || !old.modTime.Equal(fp.modTime):
			events = append(events, Event{Type: EventModify, Path: path, Timestamp: now})
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			events = append(events, Event{Type: EventDelete, Path: path, Timestamp: now})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

// IsIgnored checks if a root-relative slash path matches ignore patterns.
// The data directory is always ignored.
func (w *Watcher) IsIgnored(path string) bool {
	if paths.IsDataDir(path) {
		return true
	}
	segments := strings.Split(path, "/")
	for _, pattern := range w.config.IgnorePatterns {
		// Handle ** patterns
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		for _, seg := range segments {
			if matched, _ := filepath.Match(pattern, seg); matched {
				return true
			}
		}
	}
	return false
}

// WatchedRoots returns the watched roots, sorted
func (w *Watcher) WatchedRoots() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	roots := make([]string, 0, len(w.roots))
	for root := range w.roots {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}

// Stats returns watcher statistics
func (w *Watcher) Stats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := 0
	for _, rw := range w.roots {
		files += len(rw.files)
	}
	return map[string]interface{}{
		"enabled":        w.config.Enabled,
		"watchedRoots":   len(w.roots),
		"trackedFiles":   files,
		"debounceMs":     w.config.Debounce.Milliseconds(),
		"ignorePatterns": len(w.config.IgnorePatterns),
	}
}
