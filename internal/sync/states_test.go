package sync

import "testing"

func TestStateMachine_TransitionTable(t *testing.T) {
	m := NewStateMachine()

	valid := []struct{ from, to OrderState }{
		{StatePending, StateSyncing},
		{StatePending, StateExcluded},
		{StatePending, StateCancelled},
		{StateSyncing, StateSynced},
		{StateSyncing, StateFailed},
		{StateSyncing, StateConflict},
		{StateFailed, StatePending},
		{StateFailed, StateRecovered},
		{StateConflict, StatePending},
		{StateSynced, StateRecovered},
		{StateRecovered, StatePending},
	}
	for _, tc := range valid {
		if !m.IsValidTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be valid", tc.from, tc.to)
		}
	}

	invalid := []struct{ from, to OrderState }{
		{StatePending, StateSynced},
		{StateSynced, StateSyncing},
		{StateSynced, StatePending},
		{StateExcluded, StatePending},
		{StateCancelled, StatePending},
		{StateFailed, StateSynced},
		{StateConflict, StateSynced},
	}
	for _, tc := range invalid {
		if m.IsValidTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be invalid", tc.from, tc.to)
		}
	}
}

func TestStateMachine_InitialAndTerminal(t *testing.T) {
	m := NewStateMachine()

	if m.InitialState() != StatePending {
		t.Errorf("initial state should be PENDING, got %s", m.InitialState())
	}

	for _, s := range []OrderState{StateExcluded, StateCancelled} {
		if !m.IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []OrderState{StatePending, StateSyncing, StateSynced, StateFailed, StateConflict, StateRecovered} {
		if m.IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStateMachine_Registration(t *testing.T) {
	m := NewStateMachine()

	const quarantined = OrderState("QUARANTINED")

	// Edges to unknown states must be rejected
	if err := m.RegisterTransition(StateFailed, quarantined); err == nil {
		t.Error("expected error registering transition to unknown state")
	}

	m.RegisterState(quarantined)
	if err := m.RegisterTransition(StateFailed, quarantined); err != nil {
		t.Fatalf("RegisterTransition failed: %v", err)
	}

	if !m.IsValidTransition(StateFailed, quarantined) {
		t.Error("registered transition should be valid")
	}
	if m.IsValidTransition(StatePending, quarantined) {
		t.Error("unregistered edge should stay invalid")
	}

	// New state has no outgoing edges yet, so it is terminal until one is added
	if !m.IsTerminal(quarantined) {
		t.Error("state without outgoing edges should be terminal")
	}
}
