package task

import (
	"sync"

	"github.com/coldeck/mrcore/internal/debug"
	"github.com/coldeck/mrcore/internal/errors"
)

// State is the per-instance lifecycle: NEW -> SETUP -> FANNED_OUT ->
// MAPPED (leaves only) | SPLIT (interior) -> REDUCED -> (top only)
// POST_LOCAL_DONE -> COMPLETE; any state may transition to CANCELLED on
// exception.
type State int

const (
	StateNew State = iota
	StateSetup
	StateFannedOut
	StateMapped
	StateSplit
	StateReduced
	StatePostLocalDone
	StateComplete
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSetup:
		return "SETUP"
	case StateFannedOut:
		return "FANNED_OUT"
	case StateMapped:
		return "MAPPED"
	case StateSplit:
		return "SPLIT"
	case StateReduced:
		return "REDUCED"
	case StatePostLocalDone:
		return "POST_LOCAL_DONE"
	case StateComplete:
		return "COMPLETE"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// legalFrom lists, for each state, the states a transition into it may
// originate from. CANCELLED is reachable from everywhere and is checked
// separately in transition.
var legalFrom = map[State][]State{
	StateSetup:         {StateNew},
	StateFannedOut:     {StateSetup},
	StateMapped:        {StateFannedOut},
	StateSplit:         {StateFannedOut},
	StateReduced:       {StateMapped, StateSplit},
	StatePostLocalDone: {StateReduced},
	StateComplete:      {StateReduced, StatePostLocalDone},
}

// machine tracks one task instance's lifecycle for diagnostics and to
// catch ordering bugs in this engine itself during development; it is not
// exposed to user hooks.
type machine struct {
	mu      sync.Mutex
	current State
}

func newMachine() *machine {
	return &machine{current: StateNew}
}

func (m *machine) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if to == StateCancelled {
		debug.Log("task state %v -> CANCELLED", m.current)
		m.current = StateCancelled
		return nil
	}

	for _, from := range legalFrom[to] {
		if m.current == from {
			m.current = to
			return nil
		}
	}
	return errors.Errorf("illegal task state transition: %v -> %v", m.current, to)
}

func (m *machine) get() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
