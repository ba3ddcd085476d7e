// Package telemetry gates performance collection behind a session flag and
// periodically turns the collected statistics into stored reports.
package telemetry

import (
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"

	"diaghost/internal/perf"
)

// Service is the telemetry sink of the diagnostic computer. Snapshots are
// forwarded to the tracker only while a session is active.
type Service struct {
	tracker *perf.Tracker
	active  atomic.Bool
	logger  *slog.Logger
}

// NewService creates a sink for tracker. active sets the initial session state.
func NewService(tracker *perf.Tracker, active bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{tracker: tracker, logger: logger}
	s.active.Store(active)
	return s
}

// HasActiveSession reports whether snapshots are currently collected.
func (s *Service) HasActiveSession() bool {
	return s.active.Load()
}

// SetActive starts or ends the telemetry session.
func (s *Service) SetActive(active bool) {
	if s.active.Swap(active) != active {
		s.logger.Info("Telemetry session changed", "active", active)
	}
}

// AddSnapshot forwards one request's timings while a session is active.
func (s *Service) AddSnapshot(timings []perf.AnalyzerTiming, unitCount int, forSpan bool) {
	if !s.HasActiveSession() {
		return
	}
	s.tracker.AddSnapshot(timings, unitCount, forSpan)
}

// Tracker returns the underlying tracker.
func (s *Service) Tracker() *perf.Tracker {
	return s.tracker
}

// DisplayID returns the id used when an analyzer leaves the process.
// Built-in ids are returned as is; third-party ids are hashed so project
// specific names are never reported.
func DisplayID(analyzerID string, builtIn bool) string {
	if builtIn {
		return analyzerID
	}
	sum := blake2b.Sum256([]byte(analyzerID))
	return "analyzer-" + hex.EncodeToString(sum[:8])
}
