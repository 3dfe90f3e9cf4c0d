package cancel

import (
	"context"
	"testing"

	"github.com/sdmcore/engine/pkg/bus"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/store"
)

type fakeBackend struct {
	pending []*goal.Set
	updated []*goal.Event
}

func (f *fakeBackend) FetchSet(ctx context.Context, goalSetID string) (*goal.Set, error) {
	for _, s := range f.pending {
		if s.GoalSetID == goalSetID {
			return s, nil
		}
	}
	return nil, nil
}
func (f *fakeBackend) FetchGoal(ctx context.Context, goalSetID, uniqueName, environment string) (*goal.Event, error) {
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
	return f.pending, nil
}

func pendingSet(id string) *goal.Set {
	return &goal.Set{
		GoalSetID: id,
		Goals: []*goal.Event{
			{GoalSetID: id, UniqueName: "build", State: goal.StateSuccess},
			{GoalSetID: id, UniqueName: "deploy", State: goal.StateRequested},
		},
	}
}

func TestCancelOneCancelsOnlyNonTerminalGoals(t *testing.T) {
	set := pendingSet("gs-1")
	backend := &fakeBackend{pending: []*goal.Set{set}}
	svc := &Service{Registration: "my-sdm", Backend: backend, Bus: bus.NewMemory()}

	found, err := svc.CancelOne(context.Background(), "gs-1")
	if err != nil {
		t.Fatalf("CancelOne: %v", err)
	}
	if !found {
		t.Fatal("expected gs-1 to be found")
	}
	if set.Goals[0].State != goal.StateSuccess {
		t.Fatalf("terminal goal should be untouched, got %s", set.Goals[0].State)
	}
	if set.Goals[1].State != goal.StateCanceled {
		t.Fatalf("non-terminal goal should be canceled, got %s", set.Goals[1].State)
	}
	if len(backend.updated) != 1 {
		t.Fatalf("expected exactly one persisted update, got %d", len(backend.updated))
	}
}

func TestCancelOneUnknownSetReturnsFalse(t *testing.T) {
	backend := &fakeBackend{}
	svc := &Service{Registration: "my-sdm", Backend: backend}
	found, err := svc.CancelOne(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("CancelOne: %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
}

func TestCancelAllCancelsEverySet(t *testing.T) {
	backend := &fakeBackend{pending: []*goal.Set{pendingSet("gs-1"), pendingSet("gs-2")}}
	svc := &Service{Registration: "my-sdm", Backend: backend}
	n, err := svc.CancelAll(context.Background())
	if err != nil {
		t.Fatalf("CancelAll: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 sets canceled, got %d", n)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	set := pendingSet("gs-1")
	backend := &fakeBackend{pending: []*goal.Set{set}}
	svc := &Service{Registration: "my-sdm", Backend: backend}

	if _, err := svc.CancelOne(context.Background(), "gs-1"); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	before := len(backend.updated)
	if _, err := svc.CancelOne(context.Background(), "gs-1"); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if len(backend.updated) != before {
		t.Fatalf("second cancel should be a no-op, updated grew from %d to %d", before, len(backend.updated))
	}
}
