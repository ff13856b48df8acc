package sync

import (
	"fmt"
	"sync"
)

// OrderState is one lifecycle state of a synchronized order
type OrderState string

const (
	StatePending   OrderState = "PENDING"
	StateSyncing   OrderState = "SYNCING"
	StateSynced    OrderState = "SYNCED"
	StateFailed    OrderState = "FAILED"
	StateConflict  OrderState = "CONFLICT"
	StateExcluded  OrderState = "EXCLUDED"
	StateRecovered OrderState = "RECOVERED"
	StateCancelled OrderState = "CANCELLED"
)

// StateMachine validates order lifecycle transitions. The transition table is
// runtime-extensible through the Register* API, which is meant to be called at
// startup before any transitions are validated.
type StateMachine struct {
	mu          sync.RWMutex
	transitions map[OrderState]map[OrderState]bool
}

// NewStateMachine returns a state machine seeded with the built-in table.
// EXCLUDED and CANCELLED are terminal: no outgoing edges.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: map[OrderState]map[OrderState]bool{
			StatePending:   {StateSyncing: true, StateExcluded: true, StateCancelled: true},
			StateSyncing:   {StateSynced: true, StateFailed: true, StateConflict: true, StateCancelled: true},
			StateFailed:    {StatePending: true, StateRecovered: true, StateExcluded: true, StateCancelled: true},
			StateConflict:  {StatePending: true, StateExcluded: true, StateCancelled: true},
			StateSynced:    {StateRecovered: true, StateExcluded: true, StateCancelled: true},
			StateRecovered: {StatePending: true, StateExcluded: true, StateCancelled: true},
			StateExcluded:  {},
			StateCancelled: {},
		},
	}
	return sm
}

// InitialState is the state every fresh order key starts in
func (sm *StateMachine) InitialState() OrderState {
	return StatePending
}

// RegisterState adds a new state with no edges. Registering an existing state
// is a no-op.
func (sm *StateMachine) RegisterState(state OrderState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.transitions[state]; !ok {
		sm.transitions[state] = map[OrderState]bool{}
	}
}

// RegisterTransition adds an edge between two registered states. Both
// endpoints must have been registered first; edges to or from unknown states
// are rejected.
func (sm *StateMachine) RegisterTransition(from, to OrderState) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.transitions[from]; !ok {
		return fmt.Errorf("register transition: unknown state %q", from)
	}
	if _, ok := sm.transitions[to]; !ok {
		return fmt.Errorf("register transition: unknown state %q", to)
	}
	sm.transitions[from][to] = true
	return nil
}

// IsValidTransition reports whether from -> to is an edge of the table
func (sm *StateMachine) IsValidTransition(from, to OrderState) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	edges, ok := sm.transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// IsTerminal reports whether the state has no outgoing edges
func (sm *StateMachine) IsTerminal(state OrderState) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	edges, ok := sm.transitions[state]
	return ok && len(edges) == 0
}

// KnownStates returns every registered state
func (sm *StateMachine) KnownStates() []OrderState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	states := make([]OrderState, 0, len(sm.transitions))
	for s := range sm.transitions {
		states = append(states, s)
	}
	return states
}
