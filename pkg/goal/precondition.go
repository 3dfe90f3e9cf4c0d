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

import (
	"sort"

	"github.com/sdmcore/engine/internal/sdmerrors"
)

// IsDirectlyDependentOn reports whether g directly depends on u, by the
// (environment, uniqueName) key comparison required in §8.
func IsDirectlyDependentOn(u, g *Event) bool {
	for _, p := range g.PreConditions {
		if p.Environment == u.Environment && p.UniqueName == u.UniqueName {
			return true
		}
	}
	return false
}

// DetectCycle runs Tarjan's strongly-connected-components algorithm over
// the preConditions edges of a goal set and returns the keys in the first
// non-trivial SCC found, or nil if the graph is acyclic. A self-loop
// (a goal listing itself as its own precondition) also counts as a cycle.
//
// Per the design note in §9, this must run at planning time and reject
// the set before any goal is emitted.
func DetectCycle(events []*Event) []string {
	t := &tarjan{
		index:   make(map[string]int),
		low:     make(map[string]int),
		onStack: make(map[string]bool),
		byKey:   make(map[string]*Event, len(events)),
	}
	for _, e := range events {
		t.byKey[e.Key()] = e
	}
	for _, e := range events {
		if _, seen := t.index[e.Key()]; !seen {
			if scc := t.strongConnect(e); scc != nil {
				return scc
			}
		}
	}
	return nil
}

type tarjan struct {
	counter int
	index   map[string]int
	low     map[string]int
	onStack map[string]bool
	stack   []string
	byKey   map[string]*Event
}

// strongConnect returns the member keys of the first SCC of size > 1 (or
// a self-loop SCC of size 1) discovered rooted at v, or nil if none is
// found in v's subtree.
func (t *tarjan) strongConnect(v *Event) []string {
	vKey := v.Key()
	t.index[vKey] = t.counter
	t.low[vKey] = t.counter
	t.counter++
	t.stack = append(t.stack, vKey)
	t.onStack[vKey] = true

	for _, ref := range v.PreConditions {
		wKey := ref.key()
		w, ok := t.byKey[wKey]
		if !ok {
			// Dangling precondition (refers to a goal outside this set)
			// is a validation concern handled elsewhere, not a cycle.
			continue
		}
		if _, seen := t.index[wKey]; !seen {
			if scc := t.strongConnect(w); scc != nil {
				return scc
			}
			if t.low[wKey] < t.low[vKey] {
				t.low[vKey] = t.low[wKey]
			}
		} else if t.onStack[wKey] {
			if t.index[wKey] < t.low[vKey] {
				t.low[vKey] = t.index[wKey]
			}
		}
	}

	if t.low[vKey] != t.index[vKey] {
		return nil
	}

	var scc []string
	for {
		n := len(t.stack) - 1
		top := t.stack[n]
		t.stack = t.stack[:n]
		t.onStack[top] = false
		scc = append(scc, top)
		if top == vKey {
			break
		}
	}
	if len(scc) > 1 {
		sort.Strings(scc)
		return scc
	}
	// Single-node SCC: still a cycle iff it's a self-loop.
	for _, ref := range v.PreConditions {
		if ref.key() == vKey {
			return scc
		}
	}
	return nil
}

// ValidateAcyclic returns a validation error naming the cycle members if
// events contains a preConditions cycle.
func ValidateAcyclic(events []*Event) error {
	if scc := DetectCycle(events); scc != nil {
		return sdmerrors.New(sdmerrors.KindValidation, "cyclic goal dependency: "+joinKeys(scc))
	}
	return nil
}

func joinKeys(keys []string) string {
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " -> "
		}
		out += k
	}
	return out
}

// Candidates returns the goals in set that have just become eligible to
// advance because u reached success, per the precondition rule in §4.4:
// a goal's candidacy is only re-evaluated from states {planned, skipped,
// failure & retryFeasible}, and it becomes a candidate only once every
// one of its preConditions resolves to a success in the same set.
func Candidates(set *Set, u *Event) []*Event {
	if u.State != StateSuccess {
		return nil
	}
	var out []*Event
	for _, g := range set.Goals {
		if !reEvaluable(g) {
			continue
		}
		if !IsDirectlyDependentOn(u, g) {
			continue
		}
		if allPreConditionsSucceeded(set, g) {
			out = append(out, g)
		}
	}
	return out
}

func reEvaluable(g *Event) bool {
	switch g.State {
	case StatePlanned, StateSkipped:
		return true
	case StateFailure:
		return g.RetryFeasible
	default:
		return false
	}
}

func allPreConditionsSucceeded(set *Set, g *Event) bool {
	for _, ref := range g.PreConditions {
		dep, ok := set.ByKey(ref.key())
		if !ok || dep.State != StateSuccess {
			return false
		}
	}
	return true
}

// AdvanceState returns the state a candidate goal should move to: per
// §4.4, waiting_for_pre_approval if preApprovalRequired, otherwise
// requested.
func AdvanceState(g *Event) State {
	if g.PreApprovalRequired {
		return StateWaitingForPreApproval
	}
	return StateRequested
}
