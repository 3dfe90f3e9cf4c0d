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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/sdmcore/engine/internal/logging"
	"github.com/sdmcore/engine/internal/metrics"
	"github.com/sdmcore/engine/pkg/bus"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/planner"
	"github.com/sdmcore/engine/pkg/push"
	"github.com/sdmcore/engine/pkg/store"
)

// pushIngest is the HTTP entry point for §2's "push event" arriving
// from a source-control provider's webhook. Per §2's architecture — an
// event-driven pipeline whose bus delivers "push observed" as one of
// its four event categories, same standing as goal requested/succeeded/
// completed — this handler does not plan inline. It only decodes and
// republishes to CategoryPushObserved; pushConsumer (below) is the
// actual planner, subscribed to that category the same way the
// dispatcher subscribes to CategoryGoalRequested.
type pushIngest struct {
	Bus    bus.Bus
	Logger logging.Line
}

func (i *pushIngest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var wire push.Push
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		http.Error(w, "decoding push payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := i.Bus.Publish(r.Context(), bus.CategoryPushObserved, wire); err != nil {
		i.Logger.Warn("sdmd: publishing observed push failed", "repo", wire.Repo.String(), "err", err)
		http.Error(w, "publishing push: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// pushConsumer subscribes to CategoryPushObserved, plans each push, persists
// the resulting goal set, and publishes every goal the plan started in
// requested state so the dispatcher picks them up.
type pushConsumer struct {
	Planner *planner.Planner
	Backend store.Backend
	Bus     bus.Bus
	Logger  logging.Line
	Metrics *metrics.Metrics
}

// setSeeder is implemented by store.Memory: a goal set has to be seeded
// once before UpdateGoal has anything to find by uniqueName. A real
// external backend would create the set as part of its own mutation and
// never needs this — it is a narrow accommodation for the in-process
// default, not part of the Backend contract itself.
type setSeeder interface {
	PutSet(set *goal.Set)
}

func (c *pushConsumer) handle(ctx context.Context, payload []byte) error {
	var wire push.Push
	if err := json.Unmarshal(payload, &wire); err != nil {
		return fmt.Errorf("sdmd: decoding observed-push payload: %w", err)
	}

	pushCtx := push.Context{
		Push:      wire,
		Files:     noFileReader{},
		Providers: noResourceProviders{},
		Goals:     &backendGoalLookup{Backend: c.Backend, GoalSetID: ""},
	}

	set, err := c.Planner.Plan(pushCtx)
	if err != nil {
		c.Logger.Warn("sdmd: planning push failed", "repo", wire.Repo.String(), "err", err)
		return nil
	}

	if seeder, ok := c.Backend.(setSeeder); ok {
		seeder.PutSet(set)
	}

	for _, e := range set.Goals {
		c.Metrics.GoalsPlanned.WithLabelValues(e.UniqueName).Inc()
		if err := c.Backend.UpdateGoal(ctx, e); err != nil {
			c.Logger.Warn("sdmd: persisting planned goal failed", "goal", e.Key(), "err", err)
			continue
		}
		if e.State != goal.StateRequested {
			continue
		}
		if err := c.Bus.Publish(ctx, bus.CategoryGoalRequested, e); err != nil {
			c.Logger.Warn("sdmd: publishing requested goal failed", "goal", e.Key(), "err", err)
		}
	}
	return nil
}

// backendGoalLookup implements push.GoalLookup against the same Backend
// the rest of the core persists to, resolving the isGoal test kind
// against goals already planned for this goal set.
type backendGoalLookup struct {
	Backend   store.Backend
	GoalSetID string
}

func (l *backendGoalLookup) FindGoal(ctx push.Context, nameRegex string) (push.GoalSummary, bool, error) {
	if l.GoalSetID == "" {
		return push.GoalSummary{}, false, nil
	}
	set, err := l.Backend.FetchSet(context.Background(), l.GoalSetID)
	if err != nil || set == nil {
		return push.GoalSummary{}, false, err
	}
	re, err := regexp.Compile(nameRegex)
	if err != nil {
		return push.GoalSummary{}, false, err
	}
	for _, g := range set.Goals {
		if re.MatchString(g.UniqueName) {
			return push.GoalSummary{UniqueName: g.UniqueName, State: string(g.State), Output: g.URL, Data: g.Data}, true, nil
		}
	}
	return push.GoalSummary{}, false, nil
}

// noFileReader and noResourceProviders stand in for the source-control
// content API and resource-provider catalog: both are external
// collaborators this core narrows to an interface but never implements
// beyond the thin adapters needed to exercise it in tests (§8
// Non-goals). A rule whose pushTest needs hasFile, hasFileContaining, or
// hasResourceProvider requires a real adapter wired in their place.
type noFileReader struct{}

func (noFileReader) HasFile(ctx push.Context, path string) (bool, error)     { return false, nil }
func (noFileReader) ReadFile(ctx push.Context, path string) (string, bool, error) {
	return "", false, nil
}
func (noFileReader) MatchGlobs(ctx push.Context, globs []string) ([]string, error) { return nil, nil }

type noResourceProviders struct{}

func (noResourceProviders) HasResourceProvider(ctx push.Context, providerType, name string) (bool, error) {
	return false, nil
}
