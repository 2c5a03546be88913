package state

import "testing"

func TestEnsureTransitionSameStatusIsNoOp(t *testing.T) {
	for _, s := range []OrderStatus{StatusDraft, StatusRequested, StatusAccepted, StatusCompleted} {
		if err := EnsureTransition(s, s); err != nil {
			t.Fatalf("EnsureTransition(%s, %s): %v", s, s, err)
		}
	}
}

func TestEnsureTransitionTable(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{StatusRequested, StatusAccepted, true},
		{StatusRequested, StatusDeclined, true},
		{StatusRequested, StatusQuestioned, true},
		{StatusRequested, StatusRevised, true},
		{StatusRequested, StatusCancelled, true},
		{StatusRequested, StatusFulfilled, false},
		{StatusQuestioned, StatusRequested, true},
		{StatusQuestioned, StatusAccepted, false},
		{StatusRevised, StatusAccepted, true},
		{StatusRevised, StatusDeclined, true},
		{StatusAccepted, StatusFulfilled, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusAccepted, StatusRequested, false},
		{StatusFulfilled, StatusCompleted, true},
		{StatusFulfilled, StatusCancelled, true},
		{StatusDeclined, StatusRequested, false},
		{StatusCancelled, StatusRequested, false},
		{StatusCompleted, StatusRequested, false},
	}
	for _, c := range cases {
		err := EnsureTransition(c.from, c.to)
		if c.ok && err != nil {
			t.Errorf("EnsureTransition(%s, %s): unexpected error %v", c.from, c.to, err)
		}
		if !c.ok && err == nil {
			t.Errorf("EnsureTransition(%s, %s): expected error, got nil", c.from, c.to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := []OrderStatus{StatusDeclined, StatusCancelled, StatusCompleted}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s: expected Terminal() == true", s)
		}
	}
	nonTerminal := []OrderStatus{StatusDraft, StatusRequested, StatusQuestioned, StatusRevised, StatusAccepted, StatusFulfilled}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%s: expected Terminal() == false", s)
		}
	}
}
