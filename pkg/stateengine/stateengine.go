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

// Package stateengine implements the state/precondition engine of §4.4:
// on every goal-success event it re-evaluates the set's dependents and
// advances whichever became candidates.
package stateengine

import (
	"context"
	"encoding/json"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/bus"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/sign"
	"github.com/sdmcore/engine/pkg/store"
)

// Callback enriches a candidate's data before it is published as
// requested, per §4.4's "invoking fulfillment-callback chain first
// (callbacks may enrich data)".
type Callback func(ctx context.Context, e *goal.Event) error

// LineLogger is the minimal structured-logging surface the engine needs.
type LineLogger interface {
	Warn(msg string, kv ...any)
}

// Engine subscribes to goal-success events and advances dependent goals.
type Engine struct {
	Bus       bus.Bus
	Backend   store.Backend
	Signer    *sign.Signer // re-signs advanced goals before publishing; nil disables signing
	Callbacks []Callback
	Logger    LineLogger
}

// Start subscribes the engine to the goal-succeeded category and returns
// an unsubscribe function.
func (eng *Engine) Start() (func() error, error) {
	return eng.Bus.Subscribe(bus.CategoryGoalSucceeded, eng.handleSucceeded)
}

func (eng *Engine) handleSucceeded(ctx context.Context, payload []byte) error {
	var u goal.Event
	if err := json.Unmarshal(payload, &u); err != nil {
		return sdmerrors.Wrap(sdmerrors.KindValidation, err, "stateengine: decoding goal-succeeded payload")
	}

	set, err := eng.Backend.FetchSet(ctx, u.GoalSetID)
	if err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "stateengine: fetching goal set")
	}

	candidates := goal.Candidates(set, &u)
	for _, c := range candidates {
		if err := eng.advance(ctx, c); err != nil {
			// One candidate failing to advance must not block the
			// others in the same batch; it will be re-evaluated on the
			// next success in its dependency chain.
			if eng.Logger != nil {
				eng.Logger.Warn("stateengine: advancing candidate failed", "goal", c.Key(), "err", err)
			}
		}
	}
	return nil
}

func (eng *Engine) advance(ctx context.Context, c *goal.Event) error {
	next := goal.AdvanceState(c)
	prev := c.State
	if err := c.Transition(next); err != nil {
		return err
	}

	if next == goal.StateRequested {
		for _, cb := range eng.Callbacks {
			if err := cb(ctx, c); err != nil {
				c.State = prev
				return sdmerrors.Wrap(sdmerrors.KindTransient, err, "stateengine: fulfillment callback")
			}
		}
	}

	if eng.Signer != nil {
		if err := eng.Signer.Sign(c); err != nil {
			return sdmerrors.Wrap(sdmerrors.KindSignature, err, "stateengine: signing advanced goal")
		}
	}

	if err := eng.Backend.UpdateGoal(ctx, c); err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "stateengine: persisting advanced goal")
	}

	// Only a goal that actually reached requested is ready for the
	// dispatcher; AdvanceState may also land a goal in
	// waitingForPreApproval, which must wait for an operator's approval
	// before it is ever published for dispatch.
	if next != goal.StateRequested {
		return nil
	}

	if err := eng.Bus.Publish(ctx, bus.CategoryGoalRequested, c); err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "stateengine: publishing advanced goal")
	}
	return nil
}
