package diagnostics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"diaghost/internal/analysis"
)

// errPreempted is the cancel cause of normal-priority work interrupted by a
// high-priority request.
var errPreempted = errors.New("preempted by high priority request")

// highTask is one running high-priority computation. done is closed when it
// finishes.
type highTask struct {
	done chan struct{}
}

// normalSource is the cancel source of one running normal-priority attempt.
type normalSource struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	finished atomic.Bool
}

// State is the process-scoped scheduler state: the compilation cache and
// the priority bookkeeping. A server keeps one for its lifetime.
type State struct {
	cache *CompilationCache

	mu     sync.Mutex
	high   map[*highTask]struct{}
	normal map[*normalSource]struct{}
}

// NewState creates scheduler state with an empty cache over provider.
func NewState(provider analysis.Provider, opts CacheOptions) *State {
	return &State{
		cache:  NewCompilationCache(provider, opts),
		high:   make(map[*highTask]struct{}),
		normal: make(map[*normalSource]struct{}),
	}
}

// Cache returns the compilation cache.
func (s *State) Cache() *CompilationCache {
	return s.cache
}

// enterHigh registers a high-priority task and returns the normal sources
// running at that moment. Registration happens before the caller cancels
// them, so an attempt starting after the sweep already sees the task.
func (s *State) enterHigh() (*highTask, []*normalSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &highTask{done: make(chan struct{})}
	s.high[t] = struct{}{}
	sources := make([]*normalSource, 0, len(s.normal))
	for src := range s.normal {
		sources = append(sources, src)
	}
	return t, sources
}

func (s *State) leaveHigh(t *highTask) {
	s.mu.Lock()
	delete(s.high, t)
	s.mu.Unlock()
	close(t.done)
}

// enterNormal registers a cancel source linked to ctx when no high-priority
// task is running. Otherwise it returns the done channels to wait on.
func (s *State) enterNormal(ctx context.Context) (*normalSource, []<-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.high) > 0 {
		waits := make([]<-chan struct{}, 0, len(s.high))
		for t := range s.high {
			waits = append(waits, t.done)
		}
		return nil, waits
	}

	srcCtx, cancel := context.WithCancelCause(ctx)
	src := &normalSource{ctx: srcCtx, cancel: cancel}
	s.normal[src] = struct{}{}
	return src, nil
}

func (s *State) leaveNormal(src *normalSource) {
	s.mu.Lock()
	delete(s.normal, src)
	s.mu.Unlock()
	src.finished.Store(true)
	src.cancel(context.Canceled)
}

// Running returns the number of registered high and normal computations.
func (s *State) Running() (high, normal int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.high), len(s.normal)
}
