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

// MemoryCache is a non-durable Cache, the default when no Redis address
// is configured — the same single-node/dev role Memory plays for
// Backend. Entries never expire, since there is no process restart to
// survive and therefore no staleness to guard against within a run.
type MemoryCache struct {
	mu    sync.RWMutex
	prefs map[string]string
	goals map[string]goal.State
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{prefs: make(map[string]string), goals: make(map[string]goal.State)}
}

func (c *MemoryCache) GetPreference(ctx context.Context, repoKey, name string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.prefs[preferenceKey(repoKey, name)]
	return v, ok, nil
}

func (c *MemoryCache) SetPreference(ctx context.Context, repoKey, name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs[preferenceKey(repoKey, name)] = value
	return nil
}

func (c *MemoryCache) CacheGoalState(ctx context.Context, goalSetID, uniqueName, environment string, state goal.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goals[goalStateKey(goalSetID, uniqueName, environment)] = state
	return nil
}

func (c *MemoryCache) CachedGoalState(ctx context.Context, goalSetID, uniqueName, environment string) (goal.State, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.goals[goalStateKey(goalSetID, uniqueName, environment)]
	return s, ok, nil
}
