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

package store

import (
	"context"
	"sync"

	"github.com/sdmcore/engine/pkg/goal"
)

// Memory is a non-durable Backend, the default for single-node/dev
// deployments with no GraphQL backend configured — the same "pluggable
// lightweight default" role bus.Memory and the process-pool scheduler
// play elsewhere in this core. It is not a substitute for the real
// external system of record §1/§8 place out of scope: state here does
// not survive a restart.
type Memory struct {
	mu   sync.Mutex
	sets map[string]*goal.Set
	jobs map[string]Job
}

func NewMemoryBackend() *Memory {
	return &Memory{sets: make(map[string]*goal.Set), jobs: make(map[string]Job)}
}

// PutSet registers or replaces the goal set a planner has just produced,
// the entry point that seeds this backend before any goal is dispatched.
func (m *Memory) PutSet(set *goal.Set) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[set.GoalSetID] = set
}

func (m *Memory) FetchSet(ctx context.Context, goalSetID string) (*goal.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[goalSetID], nil
}

func (m *Memory) FetchGoal(ctx context.Context, goalSetID, uniqueName, environment string) (*goal.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[goalSetID]
	if !ok {
		return nil, nil
	}
	for _, g := range set.Goals {
		if g.UniqueName == uniqueName && g.Environment == environment {
			return g, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpdateGoal(ctx context.Context, e *goal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[e.GoalSetID]
	if !ok {
		return nil
	}
	for i, g := range set.Goals {
		if g.UniqueName == e.UniqueName && g.Environment == e.Environment {
			set.Goals[i] = e
			return nil
		}
	}
	set.Goals = append(set.Goals, e)
	return nil
}

func (m *Memory) ListPendingSets(ctx context.Context, registration string) ([]*goal.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*goal.Set
	for _, set := range m.sets {
		if set.DerivedState() == goal.SetPending {
			pending = append(pending, set)
		}
	}
	return pending, nil
}

func (m *Memory) CreateJob(ctx context.Context, j Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.Name] = j
	return nil
}

func (m *Memory) SetTaskState(ctx context.Context, jobName, taskName string, state TaskState, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobName]
	if !ok {
		return nil
	}
	for i, t := range j.Tasks {
		if t.Name == taskName {
			j.Tasks[i].State = state
			j.Tasks[i].Message = message
		}
	}
	m.jobs[jobName] = j
	return nil
}
