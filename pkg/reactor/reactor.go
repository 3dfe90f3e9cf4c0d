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

// Package reactor implements the goal-completion reactor of §4.8: on
// every completed goal event it runs registered listeners, publishes a
// failure commit status when that goal failed, and publishes a success
// status once every goal in its set has succeeded.
package reactor

import (
	"context"
	"encoding/json"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/bus"
	"github.com/sdmcore/engine/pkg/dispatch"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/store"
)

// ExternalStatus is the three-valued commit-status state the source
// control provider understands (§6's PUT commit status).
type ExternalStatus string

const (
	StatusPending ExternalStatus = "pending"
	StatusSuccess ExternalStatus = "success"
	StatusFailure ExternalStatus = "failure"
)

// MapState maps a goal state to its external status per the table in
// §4.8.
func MapState(s goal.State) ExternalStatus {
	switch s {
	case goal.StateSuccess:
		return StatusSuccess
	case goal.StateFailure, goal.StateSkipped, goal.StateStopped, goal.StateCanceled:
		return StatusFailure
	default:
		return StatusPending
	}
}

// StatusPublisher is the external code-status surface (§6): PUT a commit
// status keyed by SHA, formatted as context `sdm/<registration>`.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, sha string, state ExternalStatus, description, targetURL string) error
}

// CompletionInvocation is what a Listener observes (§4.8 step 3).
type CompletionInvocation struct {
	Completed   *goal.Event
	AllGoals    []*goal.Event
	Credentials map[string]string
	Channels    dispatch.AddressableChannels
}

// Listener observes one completed goal alongside its whole set.
type Listener interface {
	OnGoalCompletion(ctx context.Context, inv CompletionInvocation) error
}

// ChannelsResolver returns the chat channels to address for a set, or
// nil if none are configured.
type ChannelsResolver func(ctx context.Context, set *goal.Set) dispatch.AddressableChannels

// CredentialsResolver returns the source-control credentials needed to
// fulfil a set's repo, scoped narrowly per invocation (never cached
// beyond the listener run).
type CredentialsResolver func(ctx context.Context, set *goal.Set) (map[string]string, error)

// LineLogger is the minimal structured-logging surface the reactor needs.
type LineLogger interface {
	Warn(msg string, kv ...any)
}

// Reactor is the goal-completion reactor of §4.8.
type Reactor struct {
	Registration string
	Bus          bus.Bus
	Backend      store.Backend
	Status       StatusPublisher
	Listeners    []Listener
	Channels     ChannelsResolver
	Credentials  CredentialsResolver
	Logger       LineLogger
}

// Start subscribes the reactor to the goal-completed category.
func (r *Reactor) Start() (func() error, error) {
	return r.Bus.Subscribe(bus.CategoryGoalCompleted, r.handleCompleted)
}

func (r *Reactor) handleCompleted(ctx context.Context, payload []byte) error {
	var completed goal.Event
	if err := json.Unmarshal(payload, &completed); err != nil {
		return sdmerrors.Wrap(sdmerrors.KindValidation, err, "reactor: decoding goal-completed payload")
	}

	// Step 1: relevance — a foreign side-effect goal's completion is not
	// this registration's to react to, mirroring the dispatcher's own
	// filter 1.
	if completed.Fulfillment.Method == goal.MethodSideEffect && completed.Fulfillment.Name != r.Registration {
		return nil
	}

	set, err := r.Backend.FetchSet(ctx, completed.GoalSetID)
	if err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "reactor: fetching goal set")
	}

	r.runListeners(ctx, &completed, set)

	if completed.State == goal.StateFailure {
		return r.publish(ctx, completed.SHA, StatusFailure, sdmerrors.Redact(completed.Description), completed.URL)
	}
	if allSucceeded(set) {
		return r.publish(ctx, completed.SHA, StatusSuccess, "All goals succeeded", "")
	}
	return nil
}

func (r *Reactor) runListeners(ctx context.Context, completed *goal.Event, set *goal.Set) {
	if len(r.Listeners) == 0 {
		return
	}
	inv := CompletionInvocation{Completed: completed, AllGoals: set.Goals}
	if r.Credentials != nil {
		creds, err := r.Credentials(ctx, set)
		if err != nil && r.Logger != nil {
			r.Logger.Warn("reactor: resolving credentials failed", "goalSet", set.GoalSetID, "err", err)
		}
		inv.Credentials = creds
	}
	if r.Channels != nil {
		inv.Channels = r.Channels(ctx, set)
	}
	for _, l := range r.Listeners {
		// A listener failing must not block the others (§9 "failure of
		// one listener should not abort others").
		if err := safeListener(l, ctx, inv); err != nil && r.Logger != nil {
			r.Logger.Warn("reactor: completion listener failed", "goal", completed.Key(), "err", err)
		}
	}
}

func safeListener(l Listener, ctx context.Context, inv CompletionInvocation) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = sdmerrors.New(sdmerrors.KindExecutor, "reactor: listener panicked")
		}
	}()
	return l.OnGoalCompletion(ctx, inv)
}

func allSucceeded(set *goal.Set) bool {
	for _, g := range set.Goals {
		if g.State != goal.StateSuccess {
			return false
		}
	}
	return len(set.Goals) > 0
}

func (r *Reactor) publish(ctx context.Context, sha string, state ExternalStatus, description, url string) error {
	if r.Status == nil {
		return nil
	}
	if err := r.Status.PublishStatus(ctx, sha, state, description, url); err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "reactor: publishing external status")
	}
	return nil
}
