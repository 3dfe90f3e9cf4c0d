/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scheduler

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/dispatch"
	"github.com/sdmcore/engine/pkg/goal"
)

// ProcessPool is a third, supplemented isolation strategy (§7): a bounded
// local worker pool, useful for a single-node deployment where neither a
// subprocess fork nor a Kubernetes cluster is wanted. It satisfies the
// same dispatch.Scheduler contract as the two mandated strategies.
type ProcessPool struct {
	sem     *semaphore.Weighted
	runGoal func(ctx context.Context, inv dispatch.Invocation) dispatch.Outcome
}

// NewProcessPool builds a pool bounded to maxConcurrent simultaneous
// goal executions. runGoal is the actual work — normally an in-process
// Executor invocation performed out of band from the requesting
// goroutine.
func NewProcessPool(maxConcurrent int64, runGoal func(ctx context.Context, inv dispatch.Invocation) dispatch.Outcome) *ProcessPool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &ProcessPool{sem: semaphore.NewWeighted(maxConcurrent), runGoal: runGoal}
}

func (p *ProcessPool) Supports(inv dispatch.Invocation) bool {
	g := inv.Goal
	return g.Isolated && g.IsolationStrategy == "process-pool"
}

// Schedule acquires a pool slot (blocking if the pool is saturated) and
// runs the goal synchronously within it. Unlike the subprocess and
// Kubernetes strategies, the terminal state is known immediately, so the
// caller's outcome already reflects it rather than a "scheduled" phase.
func (p *ProcessPool) Schedule(ctx context.Context, inv dispatch.Invocation) (dispatch.Outcome, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return dispatch.Outcome{}, sdmerrors.Wrap(sdmerrors.KindScheduler, err, "scheduler: acquiring pool slot")
	}
	defer p.sem.Release(1)

	outcome := p.runGoal(ctx, inv)
	if outcome.State == nil {
		state := goal.StateSuccess
		if outcome.Code != 0 {
			state = goal.StateFailure
		}
		outcome.State = &state
	}
	return outcome, nil
}
