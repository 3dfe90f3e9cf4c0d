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

// Package dispatch implements the fulfillment dispatcher of §4.5: it
// admits a requested goal event, resolves its implementation, and either
// runs it in-process or schedules it as an isolated worker.
package dispatch

import (
	"context"
	"os"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/bus"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/progresslog"
	"github.com/sdmcore/engine/pkg/sign"
	"github.com/sdmcore/engine/pkg/store"
)

// Outcome is what an Executor or Scheduler reports back (§4.5).
type Outcome struct {
	Code         int
	Message      string
	State        *goal.State
	Phase        string
	URL          string
	ExternalURLs []string
}

// Invocation is the GoalInvocation of §4.5: everything an executor needs
// to run one goal, assembled by the dispatcher after admission.
type Invocation struct {
	Goal        *goal.Event
	Credentials map[string]string
	Channels    AddressableChannels
	Preferences store.Cache
	Log         *progresslog.Log
	Parameters  map[string]string
}

// AddressableChannels is the narrow chat-surface handle an executor may
// use to post progress, kept separate from the chat admin surface
// (pkg/chat) which handles operator commands, not goal progress.
type AddressableChannels interface {
	Send(ctx context.Context, message string) error
}

// Executor runs exactly one goal in-process and reports its outcome.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) Outcome
}

// Scheduler is the subset of an isolated-goal scheduler the dispatcher
// needs: whether it wants this invocation, and how to hand it off. The
// concrete strategies (subprocess, Kubernetes, process-pool) live in
// pkg/scheduler and implement this interface without dispatch depending
// on that package.
type Scheduler interface {
	Supports(inv Invocation) bool
	Schedule(ctx context.Context, inv Invocation) (Outcome, error)
}

// Listener observes a goal's execution before it starts and after it
// completes. A Listener that panics does not abort the dispatch —
// per §9's "failure of one listener should not abort others" design
// note, the panic is recovered and only logged.
type Listener interface {
	BeforeExecution(ctx context.Context, inv Invocation)
	AfterExecution(ctx context.Context, inv Invocation, outcome Outcome)
}

// Implementation is what the dispatcher resolves for a goal's
// uniqueName: the executor that fulfills it and the listeners to notify.
type Implementation struct {
	Executor  Executor
	Listeners []Listener
}

// ImplementationMap resolves a goal's implementation by uniqueName.
type ImplementationMap interface {
	Resolve(uniqueName string) (Implementation, bool)
}

// SetStateChecker re-checks whether a goal's set has been canceled since
// it was requested (admission filter 3).
type SetStateChecker interface {
	IsCanceled(ctx context.Context, goalSetID string) (bool, error)
}

// Dispatcher is the fulfillment dispatcher of §4.5.
type Dispatcher struct {
	Registration    string
	Verifier        *sign.Verifier // nil disables verification
	Implementations ImplementationMap
	Schedulers      []Scheduler
	SetState        SetStateChecker
	Backend         store.Backend
	// Bus republishes a goal's new state so the state engine can advance
	// dependents and the completion reactor can react to terminal
	// states (§2's "updates goal state → bus → state engine ...,
	// reactor ..."). Nil disables republishing, e.g. in tests that only
	// assert on the backend write.
	Bus    bus.Bus
	Logger LineLogger
}

// LineLogger is the minimal structured-logging surface dispatch needs —
// satisfied by internal/logging's bridge.
type LineLogger interface {
	Warn(msg string, kv ...any)
}

// Dispatch runs the admission filters of §4.5 in order, then executes or
// schedules the goal. It always returns a nil error for outcomes already
// recorded on the goal (§7 propagation policy: "the event was processed"
// is distinct from "the goal succeeded") — only a transient error (during
// admission, e.g. the set-state re-check, or while persisting the goal's
// state to the backend) is returned so the bus retries.
func (d *Dispatcher) Dispatch(ctx context.Context, e *goal.Event) error {
	// Filter 1: relevance — a side-effect goal fulfilled by another
	// registration is never ours to touch, verify, or report on.
	if e.Fulfillment.Method == goal.MethodSideEffect && e.Fulfillment.Name != d.Registration {
		return nil
	}

	// Filter 2: signature.
	if d.Verifier != nil {
		ok, reason := d.Verifier.Verify(e)
		if !ok {
			e.State = goal.StateFailure
			return d.persist(ctx, e, "Rejected because signature was "+string(reason))
		}
	}

	// Filter 3: cancellation re-check.
	if d.SetState != nil {
		canceled, err := d.SetState.IsCanceled(ctx, e.GoalSetID)
		if err != nil {
			return sdmerrors.Wrap(sdmerrors.KindTransient, err, "dispatch: re-checking cancellation")
		}
		if canceled {
			return nil
		}
	}

	// Filter 4: fulfillment method.
	switch e.Fulfillment.Method {
	case goal.MethodSdm:
		// execute
	case goal.MethodSideEffect:
		// already confirmed e.Fulfillment.Name == d.Registration above
	case goal.MethodOther:
		e.State = goal.StateFailure
		return d.persist(ctx, e, "No fulfillment")
	default:
		e.State = goal.StateFailure
		return d.persist(ctx, e, "No fulfillment")
	}

	impl, ok := d.Implementations.Resolve(e.UniqueName)
	if !ok {
		e.State = goal.StateFailure
		return d.persist(ctx, e, sdmerrors.Redact("no implementation registered for "+e.UniqueName))
	}

	inv := Invocation{Goal: e}

	for _, sched := range d.Schedulers {
		if sched.Supports(inv) {
			return d.dispatchScheduled(ctx, e, sched, inv)
		}
	}
	return d.dispatchInProcess(ctx, e, impl, inv)
}

func (d *Dispatcher) dispatchInProcess(ctx context.Context, e *goal.Event, impl Implementation, inv Invocation) error {
	e.State = goal.StateInProcess
	if err := d.Backend.UpdateGoal(ctx, e); err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "dispatch: marking in_process")
	}

	for _, l := range impl.Listeners {
		safeListenerCall(d.Logger, func() { l.BeforeExecution(ctx, inv) })
	}

	outcome := safeExecute(impl.Executor, ctx, inv)

	for _, l := range impl.Listeners {
		safeListenerCall(d.Logger, func() { l.AfterExecution(ctx, inv, outcome) })
	}

	e.State = terminalStateFor(outcome)
	e.URL = outcome.URL
	e.ExternalURLs = outcome.ExternalURLs
	e.Phase = outcome.Phase
	return d.persist(ctx, e, sdmerrors.Redact(outcome.Message))
}

func (d *Dispatcher) dispatchScheduled(ctx context.Context, e *goal.Event, sched Scheduler, inv Invocation) error {
	outcome, err := sched.Schedule(ctx, inv)
	if err != nil {
		e.State = goal.StateFailure
		return d.persist(ctx, e, "Failed to schedule goal")
	}
	if outcome.Code != 0 {
		e.State = goal.StateFailure
		return d.persist(ctx, e, sdmerrors.Redact(outcome.Message))
	}
	// A scheduler that already knows the terminal state (e.g. the
	// process-pool strategy, which runs synchronously) reports it via
	// outcome.State; the subprocess and Kubernetes strategies leave it
	// nil, since their worker will publish the real terminal state later.
	if outcome.State != nil {
		e.State = *outcome.State
		e.URL = outcome.URL
		e.ExternalURLs = outcome.ExternalURLs
		return d.persist(ctx, e, sdmerrors.Redact(outcome.Message))
	}
	e.State = goal.StateInProcess
	e.Phase = "scheduled"
	return d.persist(ctx, e, "")
}

// terminalStateFor maps an in-process Outcome to a goal State, preferring
// the executor's own reported State and falling back to the exit-code
// convention of §4.5 (0 -> success, non-zero -> failure).
func terminalStateFor(o Outcome) goal.State {
	if o.State != nil {
		return *o.State
	}
	if o.Code == 0 {
		return goal.StateSuccess
	}
	return goal.StateFailure
}

// safeExecute captures a panicking executor the same way §4.5 requires
// a thrown error to be captured as {code:1, state:failure}.
func safeExecute(ex Executor, ctx context.Context, inv Invocation) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			failed := goal.StateFailure
			out = Outcome{Code: 1, State: &failed, Message: panicMessage(r)}
		}
	}()
	return ex.Execute(ctx, inv)
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return os.Args[0] + ": executor panic"
}

func safeListenerCall(logger LineLogger, f func()) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Warn("dispatch: listener panicked", "recover", r)
		}
	}()
	f()
}

func (d *Dispatcher) persist(ctx context.Context, e *goal.Event, description string) error {
	if description != "" {
		e.Description = description
	}
	if err := d.Backend.UpdateGoal(ctx, e); err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "dispatch: persisting terminal state")
	}
	d.republish(ctx, e)
	return nil
}

// republish mirrors a goal's new state onto the bus: success events let
// the state engine re-evaluate dependents, terminal events (of any kind)
// let the completion reactor run. A publish failure is only logged —
// the goal's state is already durably persisted, so the bus is a
// notification path, not the source of truth (§9 "does not itself store
// durable goal history").
func (d *Dispatcher) republish(ctx context.Context, e *goal.Event) {
	if d.Bus == nil {
		return
	}
	if e.State == goal.StateSuccess {
		if err := d.Bus.Publish(ctx, bus.CategoryGoalSucceeded, e); err != nil && d.Logger != nil {
			d.Logger.Warn("dispatch: publishing goal-succeeded failed", "goal", e.Key(), "err", err)
		}
	}
	if e.State.IsTerminal() {
		if err := d.Bus.Publish(ctx, bus.CategoryGoalCompleted, e); err != nil && d.Logger != nil {
			d.Logger.Warn("dispatch: publishing goal-completed failed", "goal", e.Key(), "err", err)
		}
	}
}
