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

// Package store narrows the external collaborators named out-of-scope in
// §1 — the GraphQL backend persisting goal/job entities, and the
// cache/preferences store — to the Go interfaces the core actually calls
// through. Only thin adapters are provided (§8 Non-goals): a Redis-backed
// Cache to exercise the read-cache path, and nothing that reimplements a
// real GraphQL backend.
package store

import (
	"context"

	"github.com/sdmcore/engine/pkg/goal"
)

// Backend is the external system of record for goal/job entities: every
// write the core makes to persist state crosses this interface, never a
// concrete database driver. Implementations own durability; the core
// does not (§1 Non-goals: "does not itself store durable goal history").
type Backend interface {
	// FetchSet returns the full goal set for (goalSetId), used by the
	// completion reactor (§4.8) and the isolated-worker bootstrap (§4.6).
	FetchSet(ctx context.Context, goalSetID string) (*goal.Set, error)
	// FetchGoal returns exactly one goal event, used by a subprocess
	// worker to re-fetch the event it was launched for. Keyed by all
	// three of (goalSetId, uniqueName, environment) per §3 Invariant 1 —
	// the same uniqueName can be instantiated once per environment
	// within a set (e.g. "deploy" for both staging and production).
	FetchGoal(ctx context.Context, goalSetID, uniqueName, environment string) (*goal.Event, error)
	// UpdateGoal persists e's current state and is the "last writer
	// wins" write path of §5.
	UpdateGoal(ctx context.Context, e *goal.Event) error
	// ListPendingSets returns every goal set for registration whose
	// DerivedState is still pending, for the cancellation admin surface
	// of §4.9.
	ListPendingSets(ctx context.Context, registration string) ([]*goal.Set, error)
	// CreateJob records a durable out-of-process execution handle (§3).
	CreateJob(ctx context.Context, j Job) error
	// SetTaskState updates one task's state within a Job.
	SetTaskState(ctx context.Context, jobName, taskName string, state TaskState, message string) error
}

// Job is the durable handle for an isolated execution (§3 Job/JobTask).
type Job struct {
	Name  string
	Owner string
	Data  string
	Tasks []Task
}

// Task is one unit of work within a Job.
type Task struct {
	Name       string
	Parameters map[string]string
	State      TaskState
	Message    string
}

// TaskState is a JobTask's lifecycle state (§3).
type TaskState string

const (
	TaskCreated TaskState = "created"
	TaskRunning TaskState = "running"
	TaskSuccess TaskState = "success"
	TaskFailed  TaskState = "failed"
)

// Cache is the goal-state read cache / preferences store of §6's domain
// stack, backed by Redis in production. It is deliberately narrow:
// string-keyed get/set plus a per-repo preference flag, since that is
// everything the dispatcher, chat surface, and push-test isGoal lookups
// need from a fast side store instead of calling Backend on every read.
type Cache interface {
	GetPreference(ctx context.Context, repoKey, name string) (string, bool, error)
	SetPreference(ctx context.Context, repoKey, name, value string) error
	// CacheGoalState/CachedGoalState are keyed by all three of
	// (goalSetId, uniqueName, environment), matching Backend.FetchGoal —
	// see §3 Invariant 1.
	CacheGoalState(ctx context.Context, goalSetID, uniqueName, environment string, state goal.State) error
	CachedGoalState(ctx context.Context, goalSetID, uniqueName, environment string) (goal.State, bool, error)
}
