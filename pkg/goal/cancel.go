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

// CancelSet moves every non-terminal goal in set to canceled and leaves
// terminal goals untouched (§4.4 "Canceled cascade", §8 invariant). It is
// idempotent: calling it twice produces no further change the second
// time, since every goal is then terminal.
func CancelSet(set *Set) (canceled []*Event) {
	for _, g := range set.Goals {
		if g.State.IsTerminal() {
			continue
		}
		_ = g.Transition(StateCanceled) // non-terminal -> canceled is always permitted
		canceled = append(canceled, g)
	}
	return canceled
}
