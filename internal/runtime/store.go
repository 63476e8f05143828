package runtime

import "github.com/vectis-systems/fluxc/internal/ir"

// pendingEntry is one InputStore slot: a value and its arrival instant,
// or nothing.
type pendingEntry struct {
	present bool
	value   ir.Value
	instant int64
}

// InputStore is one service's buffer of at-most-one pending value per
// subscribed flow during a settling window. A second write to an
// already-populated slot in the same window is a hard error; the store
// itself enforces this rather than leaving it to callers, since "changes
// too frequently" is the one assertion this whole layer exists to make
// impossible to skip.
type InputStore struct {
	index   map[string]int
	entries []pendingEntry
}

// NewInputStore builds an InputStore with one slot per subscribed flow ID.
func NewInputStore(flowIDs []string) *InputStore {
	s := &InputStore{
		index:   make(map[string]int, len(flowIDs)),
		entries: make([]pendingEntry, len(flowIDs)),
	}
	for i, id := range flowIDs {
		s.index[id] = i
	}
	return s
}

// Has reports whether flowID occupies a slot in this store (i.e. the
// service subscribes to it).
func (s *InputStore) Has(flowID string) bool {
	_, ok := s.index[flowID]
	return ok
}

// Write records an arriving value for flowID at instant. Returns false if
// the slot was already populated this window; the caller surfaces that as
// a FrequencyViolationError.
func (s *InputStore) Write(flowID string, v ir.Value, instant int64) bool {
	i, ok := s.index[flowID]
	if !ok {
		return true // unsubscribed flow; nothing to enforce
	}
	if s.entries[i].present {
		return false
	}
	s.entries[i] = pendingEntry{present: true, value: v, instant: instant}
	return true
}

// Get returns a pending entry for flowID, if any.
func (s *InputStore) Get(flowID string) (ir.Value, int64, bool) {
	i, ok := s.index[flowID]
	if !ok || !s.entries[i].present {
		return ir.Value{}, 0, false
	}
	e := s.entries[i]
	return e.value, e.instant, true
}

// Empty reports whether no flow has a pending entry this window.
func (s *InputStore) Empty() bool {
	for _, e := range s.entries {
		if e.present {
			return false
		}
	}
	return true
}

// Clear empties every slot, closing out the current settling window.
func (s *InputStore) Clear() {
	for i := range s.entries {
		s.entries[i] = pendingEntry{}
	}
}
