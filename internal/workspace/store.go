package workspace

import "sync"

// Store keeps the most recent solution snapshots by checksum and tracks the
// current one. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	max        int
	order      []Checksum // oldest first
	byChecksum map[Checksum]*Solution
	current    *Solution
}

// NewStore creates a store holding at most max snapshots.
func NewStore(max int) *Store {
	if max < 1 {
		max = 1
	}
	return &Store{
		max:        max,
		byChecksum: make(map[Checksum]*Solution, max),
	}
}

// Add stores s and makes it current. A snapshot with an existing checksum
// replaces the stored instance.
func (st *Store) Add(s *Solution) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.byChecksum[s.Checksum]; ok {
		st.remove(s.Checksum)
	}
	st.byChecksum[s.Checksum] = s
	st.order = append(st.order, s.Checksum)
	st.current = s

	for len(st.order) > st.max {
		oldest := st.order[0]
		st.order = st.order[1:]
		delete(st.byChecksum, oldest)
	}
}

func (st *Store) remove(c Checksum) {
	for i, existing := range st.order {
		if existing == c {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	delete(st.byChecksum, c)
}

// Get returns the stored snapshot with checksum c.
func (st *Store) Get(c Checksum) (*Solution, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.byChecksum[c]
	return s, ok
}

// Current returns the most recently added snapshot, or nil.
func (st *Store) Current() *Solution {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Len returns the number of stored snapshots.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.order)
}
