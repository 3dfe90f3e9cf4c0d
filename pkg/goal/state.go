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

package goal

import "github.com/sdmcore/engine/internal/sdmerrors"

// permitted is the transition table of §4.4. Retry from a terminal
// failure state and the universal "any non-terminal → canceled" rule are
// handled separately (see CanTransition), since they don't fit a simple
// from→[]to table keyed only by the source state.
var permitted = map[State][]State{
	StatePlanned:                {StateRequested, StateWaitingForPreApproval, StateSkipped},
	StateWaitingForPreApproval: {StatePreApproved},
	StatePreApproved:           {StateRequested},
	StateRequested:             {StateInProcess},
	StateInProcess:             {StateSuccess, StateFailure, StateWaitingForApproval, StateStopped},
	StateWaitingForApproval:    {StateApproved, StateFailure},
	StateApproved:              {StateSuccess, StateFailure},
}

// CanTransition reports whether from→to is a permitted transition per the
// table in §4.4, plus the two cross-cutting rules: a retry-feasible
// failure may re-enter requested, and any non-terminal state may move to
// canceled.
func CanTransition(from, to State, retryFeasible bool) bool {
	if to == StateCanceled {
		return !from.IsTerminal()
	}
	if from == StateFailure && to == StateRequested {
		return retryFeasible
	}
	for _, candidate := range permitted[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition moves e.State to to, or returns a validation error if the
// move is not permitted. Terminal states reached via Transition are final
// except for the retryFeasible→requested path; any other write into a
// terminal goal's state must go through the planner's explicit retry,
// not this helper.
func (e *Event) Transition(to State) error {
	if !CanTransition(e.State, to, e.RetryFeasible) {
		return sdmerrors.New(sdmerrors.KindValidation,
			"goal "+e.String()+": illegal transition "+string(e.State)+" -> "+string(to))
	}
	e.State = to
	return nil
}
