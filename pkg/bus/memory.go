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

package bus

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Bus used by tests and by the subprocess
// isolated-worker bootstrap, which never talks to the real transport —
// it synthesizes one event in-memory and runs only the dispatcher
// handler against it (§4.6).
type Memory struct {
	mu   sync.Mutex
	subs map[Category][]Handler
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[Category][]Handler)}
}

func (m *Memory) Publish(ctx context.Context, category Category, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	handlers := append([]Handler(nil), m.subs[category]...)
	m.mu.Unlock()
	for _, h := range handlers {
		if err := h(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Subscribe(category Category, h Handler) (func() error, error) {
	m.mu.Lock()
	m.subs[category] = append(m.subs[category], h)
	idx := len(m.subs[category]) - 1
	m.mu.Unlock()
	return func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.subs[category][idx] = func(context.Context, []byte) error { return nil }
		return nil
	}, nil
}

func (m *Memory) Close() error { return nil }
