package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestWrapPropagatesResult(t *testing.T) {
	called := false
	err := Wrap(context.Background(), SpanBusSend, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if !called {
		t.Fatal("expected wrapped function to run")
	}
}

func TestWrapPropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := Wrap(context.Background(), SpanK8sAPICall, func(ctx context.Context) error {
		return want
	})
	if err != want {
		t.Fatalf("Wrap error = %v, want %v", err, want)
	}
}
