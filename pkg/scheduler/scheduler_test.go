package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sdmcore/engine/pkg/dispatch"
	"github.com/sdmcore/engine/pkg/goal"
)

func TestKubernetesJobNameDeterministic(t *testing.T) {
	k := &Kubernetes{DeploymentName: "sdm-core"}
	a := k.JobName("goalset-0123456789", "build")
	b := k.JobName("goalset-0123456789", "build")
	if a != b {
		t.Fatalf("JobName is not deterministic: %q vs %q", a, b)
	}
	if a != "sdm-core-job-goalset-build" {
		t.Fatalf("JobName = %q, want prefix-truncated form", a)
	}
}

func TestSubprocessSupportsOnlyIsolatedGoals(t *testing.T) {
	s := NewSubprocess("team1", "Team One")
	inv := dispatch.Invocation{Goal: &goal.Event{Isolated: false}}
	if s.Supports(inv) {
		t.Fatal("non-isolated goal should not be claimed by subprocess scheduler")
	}
	inv.Goal.Isolated = true
	inv.Goal.IsolationStrategy = "kubernetes"
	if s.Supports(inv) {
		t.Fatal("goal pinned to kubernetes strategy should not be claimed by subprocess scheduler")
	}
	inv.Goal.IsolationStrategy = ""
	if !s.Supports(inv) {
		t.Fatal("isolated goal with no strategy pinned should default to subprocess")
	}
}

func TestProcessPoolBoundsConcurrency(t *testing.T) {
	var inFlight int32
	var maxObserved int32
	pool := NewProcessPool(2, func(ctx context.Context, inv dispatch.Invocation) dispatch.Outcome {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxObserved)
			if n <= cur || atomic.CompareAndSwapInt32(&maxObserved, cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return dispatch.Outcome{Code: 0}
	})

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			_, _ = pool.Schedule(context.Background(), dispatch.Invocation{Goal: &goal.Event{Isolated: true, IsolationStrategy: "process-pool"}})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
	if maxObserved > 2 {
		t.Fatalf("observed %d concurrent executions, pool was bounded to 2", maxObserved)
	}
}

func TestProcessPoolReportsTerminalState(t *testing.T) {
	pool := NewProcessPool(1, func(ctx context.Context, inv dispatch.Invocation) dispatch.Outcome {
		return dispatch.Outcome{Code: 1, Message: "build failed"}
	})
	outcome, err := pool.Schedule(context.Background(), dispatch.Invocation{Goal: &goal.Event{}})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if outcome.State == nil || *outcome.State != goal.StateFailure {
		t.Fatalf("expected terminal failure state to be reported, got %+v", outcome)
	}
}
