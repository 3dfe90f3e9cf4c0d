package goal

import "testing"

func event(env, name string, state State, pre ...PreConditionRef) *Event {
	return &Event{Environment: env, UniqueName: name, State: state, PreConditions: pre}
}

func TestDetectCycleAcyclic(t *testing.T) {
	a := event("testing", "A", StatePlanned)
	b := event("testing", "B", StatePlanned, PreConditionRef{"testing", "A"})
	c := event("testing", "C", StatePlanned, PreConditionRef{"testing", "B"})
	if scc := DetectCycle([]*Event{a, b, c}); scc != nil {
		t.Fatalf("expected no cycle, got %v", scc)
	}
}

func TestDetectCycleDirect(t *testing.T) {
	a := event("testing", "A", StatePlanned, PreConditionRef{"testing", "B"})
	b := event("testing", "B", StatePlanned, PreConditionRef{"testing", "A"})
	scc := DetectCycle([]*Event{a, b})
	if scc == nil {
		t.Fatal("expected cycle between A and B")
	}
}

func TestDetectCycleSelfLoop(t *testing.T) {
	a := event("testing", "A", StatePlanned, PreConditionRef{"testing", "A"})
	scc := DetectCycle([]*Event{a})
	if scc == nil {
		t.Fatal("expected self-loop to be detected as a cycle")
	}
}

func TestDetectCycleDangling(t *testing.T) {
	a := event("testing", "A", StatePlanned, PreConditionRef{"testing", "ghost"})
	if scc := DetectCycle([]*Event{a}); scc != nil {
		t.Fatalf("dangling precondition is not a cycle, got %v", scc)
	}
}

func TestIsDirectlyDependentOn(t *testing.T) {
	u := event("testing", "build", StateSuccess)
	g := event("testing", "deploy", StatePlanned, PreConditionRef{"testing", "build"})
	if !IsDirectlyDependentOn(u, g) {
		t.Fatal("deploy should directly depend on build")
	}
	other := event("testing", "other", StatePlanned)
	if IsDirectlyDependentOn(u, other) {
		t.Fatal("other does not depend on build")
	}
}

func TestCandidatesSingleDependency(t *testing.T) {
	build := event("testing", "build", StateSuccess)
	deploy := event("testing", "deploy", StatePlanned, PreConditionRef{"testing", "build"})
	set := &Set{Goals: []*Event{build, deploy}}

	cands := Candidates(set, build)
	if len(cands) != 1 || cands[0] != deploy {
		t.Fatalf("expected deploy to be a candidate, got %v", cands)
	}
}

func TestCandidatesRequiresAllPreconditions(t *testing.T) {
	build := event("testing", "build", StateSuccess)
	lint := event("testing", "lint", StatePlanned) // not yet success
	deploy := event("testing", "deploy", StatePlanned,
		PreConditionRef{"testing", "build"}, PreConditionRef{"testing", "lint"})
	set := &Set{Goals: []*Event{build, lint, deploy}}

	cands := Candidates(set, build)
	if len(cands) != 0 {
		t.Fatalf("deploy should not be a candidate until lint succeeds too, got %v", cands)
	}
}

func TestCandidatesIgnoreNonReEvaluableStates(t *testing.T) {
	build := event("testing", "build", StateSuccess)
	deploy := event("testing", "deploy", StateInProcess, PreConditionRef{"testing", "build"})
	set := &Set{Goals: []*Event{build, deploy}}

	if cands := Candidates(set, build); len(cands) != 0 {
		t.Fatalf("in_process goal is not re-evaluable, got %v", cands)
	}
}

func TestCandidatesRetryFeasibleFailure(t *testing.T) {
	build := event("testing", "build", StateSuccess)
	deploy := event("testing", "deploy", StateFailure, PreConditionRef{"testing", "build"})
	deploy.RetryFeasible = true
	set := &Set{Goals: []*Event{build, deploy}}

	cands := Candidates(set, build)
	if len(cands) != 1 {
		t.Fatalf("retry-feasible failure should become a candidate again, got %v", cands)
	}
}

func TestAdvanceStateRespectsPreApproval(t *testing.T) {
	g := event("testing", "deploy", StatePlanned)
	if AdvanceState(g) != StateRequested {
		t.Fatal("plain goal should advance to requested")
	}
	g.PreApprovalRequired = true
	if AdvanceState(g) != StateWaitingForPreApproval {
		t.Fatal("preApprovalRequired goal should advance to waiting_for_pre_approval")
	}
}

func TestCancelSetCascade(t *testing.T) {
	a := event("testing", "A", StateSuccess)
	b := event("testing", "B", StatePlanned)
	c := event("testing", "C", StateInProcess)
	set := &Set{Goals: []*Event{a, b, c}}

	canceled := CancelSet(set)
	if len(canceled) != 2 {
		t.Fatalf("expected 2 goals canceled, got %d", len(canceled))
	}
	if a.State != StateSuccess {
		t.Fatal("terminal goal must be untouched by cancel")
	}
	if b.State != StateCanceled || c.State != StateCanceled {
		t.Fatal("non-terminal goals must become canceled")
	}

	// idempotent: calling again changes nothing further
	if canceled2 := CancelSet(set); len(canceled2) != 0 {
		t.Fatalf("second cancel should be a no-op, got %v", canceled2)
	}
}

func TestSetDerivedState(t *testing.T) {
	tests := []struct {
		name  string
		goals []*Event
		want  SetState
	}{
		{"pending with non-terminal", []*Event{event("t", "a", StateInProcess)}, SetPending},
		{"all success", []*Event{event("t", "a", StateSuccess), event("t", "b", StateSuccess)}, SetSuccess},
		{"one failure", []*Event{event("t", "a", StateSuccess), event("t", "b", StateFailure)}, SetFailure},
		{"all canceled", []*Event{event("t", "a", StateCanceled)}, SetCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := &Set{Goals: tt.goals}
			if got := set.DerivedState(); got != tt.want {
				t.Errorf("DerivedState() = %s, want %s", got, tt.want)
			}
		})
	}
}
