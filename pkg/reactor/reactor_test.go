package reactor

import (
	"context"
	"testing"

	"github.com/sdmcore/engine/pkg/bus"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/store"
)

type fakeBackend struct {
	set *goal.Set
}

func (f *fakeBackend) FetchSet(ctx context.Context, goalSetID string) (*goal.Set, error) {
	return f.set, nil
}
func (f *fakeBackend) FetchGoal(ctx context.Context, goalSetID, uniqueName, environment string) (*goal.Event, error) {
	return nil, nil
}
func (f *fakeBackend) UpdateGoal(ctx context.Context, e *goal.Event) error { return nil }
func (f *fakeBackend) CreateJob(ctx context.Context, j store.Job) error   { return nil }
func (f *fakeBackend) SetTaskState(ctx context.Context, jobName, taskName string, state store.TaskState, message string) error {
	return nil
}
func (f *fakeBackend) ListPendingSets(ctx context.Context, registration string) ([]*goal.Set, error) {
	return nil, nil
}

type recordingStatus struct {
	calls []ExternalStatus
}

func (r *recordingStatus) PublishStatus(ctx context.Context, sha string, state ExternalStatus, description, url string) error {
	r.calls = append(r.calls, state)
	return nil
}

type countingListener struct {
	count int
}

func (c *countingListener) OnGoalCompletion(ctx context.Context, inv CompletionInvocation) error {
	c.count++
	return nil
}

func TestReactorPublishesFailureOnGoalFailure(t *testing.T) {
	set := &goal.Set{
		GoalSetID: "gs-1",
		Goals: []*goal.Event{
			{GoalSetID: "gs-1", SHA: "abc", UniqueName: "build", State: goal.StateFailure},
		},
	}
	backend := &fakeBackend{set: set}
	status := &recordingStatus{}
	listener := &countingListener{}
	r := &Reactor{Registration: "my-sdm", Bus: bus.NewMemory(), Backend: backend, Status: status, Listeners: []Listener{listener}}
	unsub, err := r.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer unsub()

	if err := r.Bus.Publish(context.Background(), bus.CategoryGoalCompleted, set.Goals[0]); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(status.calls) != 1 || status.calls[0] != StatusFailure {
		t.Fatalf("expected one failure status publish, got %+v", status.calls)
	}
	if listener.count != 1 {
		t.Fatalf("expected listener to run once, got %d", listener.count)
	}
}

func TestReactorPublishesSuccessWhenAllGoalsSucceed(t *testing.T) {
	set := &goal.Set{
		GoalSetID: "gs-1",
		Goals: []*goal.Event{
			{GoalSetID: "gs-1", SHA: "abc", UniqueName: "build", State: goal.StateSuccess},
			{GoalSetID: "gs-1", SHA: "abc", UniqueName: "test", State: goal.StateSuccess},
		},
	}
	backend := &fakeBackend{set: set}
	status := &recordingStatus{}
	r := &Reactor{Registration: "my-sdm", Bus: bus.NewMemory(), Backend: backend, Status: status}
	unsub, _ := r.Start()
	defer unsub()

	if err := r.Bus.Publish(context.Background(), bus.CategoryGoalCompleted, set.Goals[1]); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(status.calls) != 1 || status.calls[0] != StatusSuccess {
		t.Fatalf("expected one success status publish, got %+v", status.calls)
	}
}

func TestReactorIgnoresForeignSideEffectGoal(t *testing.T) {
	backend := &fakeBackend{set: &goal.Set{GoalSetID: "gs-1"}}
	status := &recordingStatus{}
	r := &Reactor{Registration: "my-sdm", Bus: bus.NewMemory(), Backend: backend, Status: status}
	unsub, _ := r.Start()
	defer unsub()

	foreign := &goal.Event{
		GoalSetID:   "gs-1",
		State:       goal.StateFailure,
		Fulfillment: goal.Fulfillment{Method: goal.MethodSideEffect, Name: "other-sdm"},
	}
	if err := r.Bus.Publish(context.Background(), bus.CategoryGoalCompleted, foreign); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(status.calls) != 0 {
		t.Fatalf("expected no status publish for a foreign side-effect goal, got %+v", status.calls)
	}
}

func TestMapStateTable(t *testing.T) {
	cases := map[goal.State]ExternalStatus{
		goal.StatePlanned:                StatusPending,
		goal.StateRequested:              StatusPending,
		goal.StateInProcess:              StatusPending,
		goal.StateWaitingForPreApproval:  StatusPending,
		goal.StateWaitingForApproval:     StatusPending,
		goal.StateSuccess:                StatusSuccess,
		goal.StateFailure:                StatusFailure,
		goal.StateSkipped:                StatusFailure,
		goal.StateStopped:                StatusFailure,
		goal.StateCanceled:               StatusFailure,
	}
	for state, want := range cases {
		if got := MapState(state); got != want {
			t.Errorf("MapState(%s) = %s, want %s", state, got, want)
		}
	}
}
