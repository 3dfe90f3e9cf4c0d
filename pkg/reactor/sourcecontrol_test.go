package reactor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSourceControlStatusPutsExpectedBody(t *testing.T) {
	var gotPath string
	var gotBody statusBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	pub := NewSourceControlStatus(srv.Client(), srv.URL, "my-registration", "tok-123")
	err := pub.PublishStatus(context.Background(), "deadbeef", StatusSuccess, "all goals succeeded", "https://ci.example/build/1")
	if err != nil {
		t.Fatalf("PublishStatus: %v", err)
	}
	if gotPath != "/deadbeef" {
		t.Fatalf("path = %q, want /deadbeef", gotPath)
	}
	if gotBody.Context != "sdm/my-registration" {
		t.Fatalf("context = %q, want sdm/my-registration", gotBody.Context)
	}
	if gotBody.State != "success" {
		t.Fatalf("state = %q, want success", gotBody.State)
	}
}

func TestSourceControlStatusFailureSurfacesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pub := NewSourceControlStatus(srv.Client(), srv.URL, "my-registration", "")
	if err := pub.PublishStatus(context.Background(), "deadbeef", StatusFailure, "build failed", ""); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}
