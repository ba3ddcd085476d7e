package watcher

import (
	"sync"
	"time"
)

// Debouncer delays execution until a quiet period has passed
type Debouncer struct {
	delay   time.Duration
	timer   *time.Timer
	mu      sync.Mutex
	pending func()
}

// NewDebouncer creates a new debouncer with the specified delay
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay: delay,
	}
}

// Trigger schedules or resets the debounced function
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = fn

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		fn := d.pending
		d.pending = nil
		d.mu.Unlock()

		if fn != nil {
			fn()
		}
	})
}

// Cancel cancels any pending execution
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}

// Flush immediately executes any pending function
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// BatchDebouncer collects events and emits them as one batch after a quiet
// period. Repeated events for the same path collapse into the latest one.
type BatchDebouncer struct {
	debouncer *Debouncer
	mu        sync.Mutex
	events    []Event
	index     map[string]int // path -> position in events
	emit      func([]Event)
}

// NewBatchDebouncer creates a new batch debouncer
func NewBatchDebouncer(delay time.Duration, emit func([]Event)) *BatchDebouncer {
	return &BatchDebouncer{
		debouncer: NewDebouncer(delay),
		index:     make(map[string]int),
		emit:      emit,
	}
}

// Add adds an event to the batch and restarts the quiet period
func (b *BatchDebouncer) Add(event Event) {
	b.mu.Lock()
	if i, ok := b.index[event.Path]; ok {
		b.events[i] = merge(b.events[i], event)
	} else {
		b.index[event.Path] = len(b.events)
		b.events = append(b.events, event)
	}
	b.mu.Unlock()

	b.debouncer.Trigger(b.flush)
}

// merge folds a newer event for the same path into an older one. A create
// followed by a modify is still a create.
func merge(older, newer Event) Event {
	if older.Type == EventCreate && newer.Type == EventModify {
		newer.Type = EventCreate
	}
	return newer
}

func (b *BatchDebouncer) flush() {
	b.mu.Lock()
	events := b.events
	b.events = nil
	clear(b.index)
	b.mu.Unlock()

	if len(events) > 0 && b.emit != nil {
		b.emit(events)
	}
}

// Cancel cancels any pending emission
func (b *BatchDebouncer) Cancel() {
	b.debouncer.Cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
	clear(b.index)
}

// Flush immediately emits any pending events
func (b *BatchDebouncer) Flush() {
	b.debouncer.Cancel()
	b.flush()
}

// EventCount returns the number of pending events
func (b *BatchDebouncer) EventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
