package analyzers

// IDIndex maps analyzer ids to analyzer instances and back. It is immutable
// after construction and safe for concurrent reads.
type IDIndex struct {
	byID  map[string]Analyzer
	ids   map[Analyzer]string
	order []string
}

// NewIDIndex indexes analyzers. When two analyzers share an id the first
// one wins; the later instance is not indexed.
func NewIDIndex(analyzers []Analyzer) *IDIndex {
	idx := &IDIndex{
		byID:  make(map[string]Analyzer, len(analyzers)),
		ids:   make(map[Analyzer]string, len(analyzers)),
		order: make([]string, 0, len(analyzers)),
	}
	for _, a := range analyzers {
		id := a.ID()
		if _, dup := idx.byID[id]; dup {
			continue
		}
		idx.byID[id] = a
		idx.ids[a] = id
		idx.order = append(idx.order, id)
	}
	return idx
}

// Analyzer returns the analyzer with id.
func (idx *IDIndex) Analyzer(id string) (Analyzer, bool) {
	a, ok := idx.byID[id]
	return a, ok
}

// ID returns the id under which a is indexed.
func (idx *IDIndex) ID(a Analyzer) (string, bool) {
	id, ok := idx.ids[a]
	return id, ok
}

// Resolve maps ids to analyzers in input order. Unknown and repeated ids are
// skipped.
func (idx *IDIndex) Resolve(ids []string) []Analyzer {
	out := make([]Analyzer, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if a, ok := idx.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of indexed analyzers.
func (idx *IDIndex) Len() int {
	return len(idx.order)
}

// IDs returns the indexed ids in insertion order.
func (idx *IDIndex) IDs() []string {
	return append([]string(nil), idx.order...)
}
