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

// Package goal implements the goal data model, state machine, and
// precondition/dependency engine.
package goal

import (
	"fmt"

	"github.com/sdmcore/engine/pkg/push"
)

// State is one of the eleven lifecycle states a Goal Event may occupy.
type State string

const (
	StatePlanned               State = "planned"
	StateRequested             State = "requested"
	StateWaitingForPreApproval State = "waiting_for_pre_approval"
	StatePreApproved           State = "pre_approved"
	StateWaitingForApproval    State = "waiting_for_approval"
	StateApproved              State = "approved"
	StateInProcess             State = "in_process"
	StateSuccess               State = "success"
	StateFailure               State = "failure"
	StateSkipped               State = "skipped"
	StateStopped               State = "stopped"
	StateCanceled              State = "canceled"
)

// terminal is the set of states from which no transition is permitted
// except an explicit, planner-initiated retry (§3 invariant 3).
var terminal = map[State]bool{
	StateSuccess:  true,
	StateFailure:  true,
	StateCanceled: true,
	StateSkipped:  true,
	StateStopped:  true,
}

// IsTerminal reports whether s is one of the five terminal states.
func (s State) IsTerminal() bool { return terminal[s] }

// FulfillmentMethod is who is expected to execute a goal.
type FulfillmentMethod string

const (
	MethodSdm        FulfillmentMethod = "Sdm"
	MethodSideEffect FulfillmentMethod = "SideEffect"
	MethodOther      FulfillmentMethod = "Other"
)

// Fulfillment names the registration responsible for executing a goal and
// how.
type Fulfillment struct {
	Name   string
	Method FulfillmentMethod
}

// Provenance records who/what caused an approval or pre-approval.
type Provenance struct {
	Registration string
	Version      string
	Name         string
	UserID       string
	ChannelID    string
	Timestamp    int64
}

// PreConditionRef is an edge: this goal depends on the given (environment,
// uniqueName) reaching success.
type PreConditionRef struct {
	Environment string
	UniqueName  string
}

func (p PreConditionRef) key() string { return p.Environment + "/" + p.UniqueName }

// Template is a Goal definition independent of any particular push (§3:
// "A Goal is a template").
type Template struct {
	UniqueName          string `validate:"required"`
	Environment         string `validate:"required"`
	Description         string
	RetryFeasible       bool
	ApprovalRequired    bool
	PreApprovalRequired bool
	DescriptionByState  map[State]string
	PreConditions       []PreConditionRef

	// Isolated marks a goal as wanting to run in its own worker
	// process/pod rather than in-process (§4.6). IsolationStrategy
	// names which configured scheduler should claim it ("" lets the
	// first scheduler whose Supports() matches take it).
	Isolated          bool
	IsolationStrategy string
}

func (t Template) key() string { return t.Environment + "/" + t.UniqueName }

// Event is a Goal Event (`SdmGoal`): the instance of a Template for one
// (sha, goalSetId).
type Event struct {
	GoalSetID           string
	UniqueName          string
	Environment         string
	Name                string
	SHA                 string
	Branch              string
	Repo                push.Repo
	State               State
	Timestamp           int64
	Version             int64
	PreConditions       []PreConditionRef
	Fulfillment         Fulfillment
	Data                string // empty means "undefined" on the wire
	Description         string // human-readable status text (UpdateSdmGoal's "description"); not part of the canonical signed form
	Phase               string
	URL                 string
	ExternalURLs        []string
	Provenance          []Provenance
	Approval            *Provenance
	PreApproval          *Provenance
	RetryFeasible       bool
	ApprovalRequired    bool
	PreApprovalRequired bool
	Signature           string

	Isolated          bool
	IsolationStrategy string
}

// Key identifies this event uniquely within its goal set (§3 invariant 1).
func (e *Event) Key() string { return e.Environment + "/" + e.UniqueName }

// matchesRef reports whether e satisfies the precondition ref p.
func (e *Event) matchesRef(p PreConditionRef) bool {
	return e.Environment == p.Environment && e.UniqueName == p.UniqueName
}

// SetState is the derived state of a whole goal set, distinct from the
// per-goal State enum.
type SetState string

const (
	SetPending  SetState = "pending"
	SetSuccess  SetState = "success"
	SetFailure  SetState = "failure"
	SetCanceled SetState = "canceled"
)

// Set is a collection of Goal Events sharing a GoalSetID (§3).
type Set struct {
	GoalSetID string
	Repo      push.Repo
	SHA       string
	Branch    string
	Goals     []*Event

	// persistedState caches the last state the external store recorded
	// for this set. Per the design note in §9, this is a cache, never
	// authoritative — DerivedState() is always recomputed from Goals.
	persistedState SetState
}

// ByKey returns the goal in the set with the given (environment,
// uniqueName) key, if any.
func (s *Set) ByKey(key string) (*Event, bool) {
	for _, g := range s.Goals {
		if g.Key() == key {
			return g, true
		}
	}
	return nil, false
}

// DerivedState computes the set's state from its goals' states: pending
// if any goal is non-terminal, success if every goal succeeded, canceled
// if some goal was canceled and none failed, skipped or stopped, failure
// otherwise (any failed, skipped or stopped goal). This is the
// authoritative value resolving the open question in §9 — the
// persistedState field, if set, is only a cache and is never consulted
// here.
func (s *Set) DerivedState() SetState {
	anyNonTerminal := false
	anyFailureLike := false
	anyCanceled := false
	for _, g := range s.Goals {
		if !g.State.IsTerminal() {
			anyNonTerminal = true
			continue
		}
		switch g.State {
		case StateCanceled:
			anyCanceled = true
		case StateFailure, StateStopped, StateSkipped:
			anyFailureLike = true
		}
	}
	switch {
	case anyNonTerminal:
		return SetPending
	case anyCanceled && !anyFailureLike:
		return SetCanceled
	case anyFailureLike || anyCanceled:
		return SetFailure
	default:
		return SetSuccess
	}
}

// CachePersistedState records the external store's last-known state for
// this set, without affecting DerivedState.
func (s *Set) CachePersistedState(st SetState) { s.persistedState = st }

// PersistedStateCache returns the cached value set by CachePersistedState,
// for diagnostics/logging only — callers must not treat it as
// authoritative.
func (s *Set) PersistedStateCache() SetState { return s.persistedState }

// String helpers for log/error messages.
func (e *Event) String() string {
	return fmt.Sprintf("%s/%s@%s[%s]", e.Environment, e.UniqueName, shortSHA(e.SHA), e.State)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
