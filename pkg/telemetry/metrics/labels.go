package metrics

import "sync"

// overflowLabel stands in for label values past a labelSet's limit.
const overflowLabel = "other"

// labelSet admits the first max distinct values of a label. Rule ids come
// from operator-supplied files, so an unbounded set could grow without limit
// across reloads.
type labelSet struct {
	max int

	mu   sync.Mutex
	seen map[string]struct{}
}

func newLabelSet(max int) *labelSet {
	return &labelSet{max: max, seen: make(map[string]struct{})}
}

// label returns v when it is admitted and overflowLabel otherwise.
func (s *labelSet) label(v string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[v]; ok {
		return v
	}
	if len(s.seen) >= s.max {
		return overflowLabel
	}
	s.seen[v] = struct{}{}
	return v
}

func (s *labelSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
