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

package dispatch

import "sync"

// Registry is the concrete ImplementationMap: goal implementations
// themselves are an external collaborator this core never owns (§1), so
// this only holds whatever Executor/Listener pairs the embedding program
// registers by uniqueName at startup, mirroring how pkg/push.Registry
// holds named push-test extensions without knowing what they do.
type Registry struct {
	mu   sync.RWMutex
	impl map[string]Implementation
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{impl: make(map[string]Implementation)}
}

// Register associates uniqueName with impl, overwriting any previous
// registration — consistent with a hot-reloaded rule file re-seeding a
// fresh registry rather than appending to a stale one.
func (r *Registry) Register(uniqueName string, impl Implementation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impl[uniqueName] = impl
}

// Resolve implements ImplementationMap.
func (r *Registry) Resolve(uniqueName string) (Implementation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.impl[uniqueName]
	return impl, ok
}
