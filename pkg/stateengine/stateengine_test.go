package stateengine

import (
	"context"
	"testing"

	"github.com/sdmcore/engine/pkg/bus"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/store"
)

type fakeBackend struct {
	set     *goal.Set
	updated []*goal.Event
}

func (f *fakeBackend) FetchSet(ctx context.Context, goalSetID string) (*goal.Set, error) {
	return f.set, nil
}
func (f *fakeBackend) FetchGoal(ctx context.Context, goalSetID, uniqueName, environment string) (*goal.Event, error) {
	for _, g := range f.set.Goals {
		if g.UniqueName == uniqueName {
			return g, nil
		}
	}
	return nil, nil
}
func (f *fakeBackend) UpdateGoal(ctx context.Context, e *goal.Event) error {
	f.updated = append(f.updated, e)
	return nil
}
func (f *fakeBackend) CreateJob(ctx context.Context, j store.Job) error { return nil }
func (f *fakeBackend) SetTaskState(ctx context.Context, jobName, taskName string, state store.TaskState, message string) error {
	return nil
}
func (f *fakeBackend) ListPendingSets(ctx context.Context, registration string) ([]*goal.Set, error) {
	return nil, nil
}

func buildSet() *goal.Set {
	upstream := &goal.Event{GoalSetID: "set1", Environment: "testing", UniqueName: "build", State: goal.StateSuccess}
	downstream := &goal.Event{
		GoalSetID:   "set1",
		Environment: "testing",
		UniqueName:  "deploy",
		State:       goal.StatePlanned,
		PreConditions: []goal.PreConditionRef{
			{Environment: "testing", UniqueName: "build"},
		},
	}
	return &goal.Set{GoalSetID: "set1", Goals: []*goal.Event{upstream, downstream}}
}

func TestEngineAdvancesCandidateOnUpstreamSuccess(t *testing.T) {
	set := buildSet()
	backend := &fakeBackend{set: set}
	b := bus.NewMemory()
	var published []*goal.Event
	_, _ = b.Subscribe(bus.CategoryGoalRequested, func(ctx context.Context, payload []byte) error {
		published = append(published, &goal.Event{})
		return nil
	})

	eng := &Engine{Bus: b, Backend: backend}
	unsub, err := eng.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer unsub()

	upstream := set.Goals[0]
	if err := b.Publish(context.Background(), bus.CategoryGoalSucceeded, upstream); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	downstream := set.Goals[1]
	if downstream.State != goal.StateRequested {
		t.Fatalf("downstream state = %s, want requested", downstream.State)
	}
	if len(backend.updated) != 1 || backend.updated[0].UniqueName != "deploy" {
		t.Fatalf("expected deploy to be persisted, got %+v", backend.updated)
	}
	if len(published) != 1 {
		t.Fatalf("expected one goal-requested publish, got %d", len(published))
	}
}

func TestEngineRoutesPreApprovalRequiredGoals(t *testing.T) {
	set := buildSet()
	set.Goals[1].PreApprovalRequired = true
	backend := &fakeBackend{set: set}
	b := bus.NewMemory()

	eng := &Engine{Bus: b, Backend: backend}
	unsub, err := eng.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer unsub()

	if err := b.Publish(context.Background(), bus.CategoryGoalSucceeded, set.Goals[0]); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if set.Goals[1].State != goal.StateWaitingForPreApproval {
		t.Fatalf("downstream state = %s, want waiting_for_pre_approval", set.Goals[1].State)
	}
}

func TestEngineIgnoresNonCandidates(t *testing.T) {
	set := buildSet()
	set.Goals[1].State = goal.StateSuccess // already terminal, not re-evaluable
	backend := &fakeBackend{set: set}
	b := bus.NewMemory()

	eng := &Engine{Bus: b, Backend: backend}
	unsub, _ := eng.Start()
	defer unsub()

	_ = b.Publish(context.Background(), bus.CategoryGoalSucceeded, set.Goals[0])
	if len(backend.updated) != 0 {
		t.Fatalf("expected no updates for an already-terminal goal, got %+v", backend.updated)
	}
}

func TestEngineCallbackFailureSkipsOneCandidateNotAll(t *testing.T) {
	set := buildSet()
	other := &goal.Event{
		GoalSetID:   "set1",
		Environment: "testing",
		UniqueName:  "notify",
		State:       goal.StatePlanned,
		PreConditions: []goal.PreConditionRef{
			{Environment: "testing", UniqueName: "build"},
		},
	}
	set.Goals = append(set.Goals, other)
	backend := &fakeBackend{set: set}
	b := bus.NewMemory()

	calls := 0
	eng := &Engine{Bus: b, Backend: backend, Callbacks: []Callback{
		func(ctx context.Context, e *goal.Event) error {
			calls++
			if e.UniqueName == "deploy" {
				return errCallback
			}
			return nil
		},
	}}
	unsub, _ := eng.Start()
	defer unsub()

	_ = b.Publish(context.Background(), bus.CategoryGoalSucceeded, set.Goals[0])

	if set.Goals[1].State != goal.StatePlanned {
		t.Fatalf("deploy should remain planned after callback error, got %s", set.Goals[1].State)
	}
	if other.State != goal.StateRequested {
		t.Fatalf("notify should still advance despite deploy's callback failing, got %s", other.State)
	}
}

type stubErr string

func (s stubErr) Error() string { return string(s) }

var errCallback = stubErr("callback refused")
