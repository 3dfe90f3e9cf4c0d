package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

func TestHandleListReturnsPendingSets(t *testing.T) {
	set := &goal.Set{GoalSetID: "gs-1", Goals: []*goal.Event{{UniqueName: "deploy", State: goal.StateRequested}}}
	backend := &fakeBackend{pending: []*goal.Set{set}}
	srv := &Server{Cancel: &cancel.Service{Registration: "my-sdm", Backend: backend}, Registration: "my-sdm"}

	req := httptest.NewRequest(http.MethodGet, "/goal-sets", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []*goal.Set
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 1 || got[0].GoalSetID != "gs-1" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestHandleCancelOneNotFoundReturns404(t *testing.T) {
	backend := &fakeBackend{}
	srv := &Server{Cancel: &cancel.Service{Registration: "my-sdm", Backend: backend}}

	req := httptest.NewRequest(http.MethodDelete, "/goal-sets/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDeployRoundTrip(t *testing.T) {
	prefs := &fakePreferences{}
	srv := &Server{Preferences: prefs}

	getReq := httptest.NewRequest(http.MethodGet, "/repos/my-repo/deploy", nil)
	getRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", getRec.Code)
	}
	var status map[string]bool
	_ = json.NewDecoder(getRec.Body).Decode(&status)
	if !status["enabled"] {
		t.Fatal("absent preference should default to enabled")
	}

	putReq := httptest.NewRequest(http.MethodPut, "/repos/my-repo/deploy", strings.NewReader(`{"enabled":false}`))
	putRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(putRec, putReq)
	if putRec.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d, want 204", putRec.Code)
	}

	getRec2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(getRec2, httptest.NewRequest(http.MethodGet, "/repos/my-repo/deploy", nil))
	var status2 map[string]bool
	_ = json.NewDecoder(getRec2.Body).Decode(&status2)
	if status2["enabled"] {
		t.Fatal("expected disabled after PUT enabled=false")
	}
}
