package chat

import (
	"context"
	"testing"

	"github.com/slack-go/slack"

	"github.com/sdmcore/engine/pkg/cancel"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/store"
)

type fakeBackend struct {
	pending []*goal.Set
}

func (f *fakeBackend) FetchSet(ctx context.Context, goalSetID string) (*goal.Set, error) { return nil, nil }
func (f *fakeBackend) FetchGoal(ctx context.Context, goalSetID, uniqueName, environment string) (*goal.Event, error) {
	return nil, nil
}
func (f *fakeBackend) UpdateGoal(ctx context.Context, e *goal.Event) error { return nil }
func (f *fakeBackend) CreateJob(ctx context.Context, j store.Job) error   { return nil }
func (f *fakeBackend) SetTaskState(ctx context.Context, jobName, taskName string, state store.TaskState, message string) error {
	return nil
}
func (f *fakeBackend) ListPendingSets(ctx context.Context, registration string) ([]*goal.Set, error) {
	return f.pending, nil
}

type fakePoster struct {
	messages []string
}

func (f *fakePoster) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.messages = append(f.messages, channelID)
	return channelID, "1.0", nil
}

type fakePreferences struct {
	values map[string]string
}

func (f *fakePreferences) GetPreference(ctx context.Context, repoKey, name string) (string, bool, error) {
	v, ok := f.values[repoKey+"/"+name]
	return v, ok, nil
}
func (f *fakePreferences) SetPreference(ctx context.Context, repoKey, name, value string) error {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[repoKey+"/"+name] = value
	return nil
}
func (f *fakePreferences) CacheGoalState(ctx context.Context, goalSetID, uniqueName, environment string, state goal.State) error {
	return nil
}
func (f *fakePreferences) CachedGoalState(ctx context.Context, goalSetID, uniqueName, environment string) (goal.State, bool, error) {
	return "", false, nil
}

func TestListGoalSetsNoneReportsEmpty(t *testing.T) {
	poster := &fakePoster{}
	svc := &cancel.Service{Registration: "my-sdm", Backend: &fakeBackend{}}
	surface := &Surface{Client: poster, Cancel: svc, Registration: "my-sdm"}

	if err := surface.ListGoalSets(context.Background(), "C123"); err != nil {
		t.Fatalf("ListGoalSets: %v", err)
	}
	if len(poster.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(poster.messages))
	}
}

func TestCancelGoalSetsCancelsAll(t *testing.T) {
	set := &goal.Set{GoalSetID: "gs-1", Goals: []*goal.Event{{UniqueName: "deploy", State: goal.StateRequested}}}
	backend := &fakeBackend{pending: []*goal.Set{set}}
	poster := &fakePoster{}
	svc := &cancel.Service{Registration: "my-sdm", Backend: backend}
	surface := &Surface{Client: poster, Cancel: svc, Registration: "my-sdm"}

	if err := surface.CancelGoalSets(context.Background(), "C123"); err != nil {
		t.Fatalf("CancelGoalSets: %v", err)
	}
	if set.Goals[0].State != goal.StateCanceled {
		t.Fatalf("expected goal canceled, got %s", set.Goals[0].State)
	}
}

func TestDeployTogglePreferenceRoundTrip(t *testing.T) {
	prefs := &fakePreferences{}
	surface := &Surface{Preferences: prefs}

	enabled, err := surface.DeployEnabled(context.Background(), "o/r")
	if err != nil {
		t.Fatalf("DeployEnabled: %v", err)
	}
	if !enabled {
		t.Fatal("absent preference should default to enabled")
	}

	if err := surface.DisableDeploy(context.Background(), "o/r"); err != nil {
		t.Fatalf("DisableDeploy: %v", err)
	}
	enabled, err = surface.DeployEnabled(context.Background(), "o/r")
	if err != nil {
		t.Fatalf("DeployEnabled: %v", err)
	}
	if enabled {
		t.Fatal("expected disabled after DisableDeploy")
	}

	if err := surface.EnableDeploy(context.Background(), "o/r"); err != nil {
		t.Fatalf("EnableDeploy: %v", err)
	}
	enabled, _ = surface.DeployEnabled(context.Background(), "o/r")
	if !enabled {
		t.Fatal("expected enabled after EnableDeploy")
	}
}
