package tracker

// State is the per-form interaction record. Started and Submitted only ever
// move from false to true.
type State struct {
	Submitted              bool
	Started                bool
	FieldInteractionCounts map[string]int
}

func (s *State) clone() State {
	counts := make(map[string]int, len(s.FieldInteractionCounts))
	for k, v := range s.FieldInteractionCounts {
		counts[k] = v
	}
	return State{Submitted: s.Submitted, Started: s.Started, FieldInteractionCounts: counts}
}

// Store maps form identity to State. Entries are never removed. Store is not
// safe for concurrent use; Tracker serializes access.
type Store struct {
	states map[string]*State
}

func NewStore() *Store {
	return &Store{states: make(map[string]*State)}
}

// Ensure returns the state for id, creating it if needed. created reports
// whether this call made the entry.
func (s *Store) Ensure(id string) (state *State, created bool) {
	if existing, ok := s.states[id]; ok {
		return existing, false
	}
	state = &State{FieldInteractionCounts: make(map[string]int)}
	s.states[id] = state
	return state, true
}

func (s *Store) Get(id string) (*State, bool) {
	state, ok := s.states[id]
	return state, ok
}

func (s *Store) Len() int {
	return len(s.states)
}
