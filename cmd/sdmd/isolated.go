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
	"fmt"
	"os"

	"github.com/sdmcore/engine/internal/config"
	"github.com/sdmcore/engine/internal/logging"
	"github.com/sdmcore/engine/pkg/bus"
	"github.com/sdmcore/engine/pkg/dispatch"
	"github.com/sdmcore/engine/pkg/scheduler"
	"github.com/sdmcore/engine/pkg/store"
)

// runIsolatedWorker is what a re-exec'd subprocess (§4.6 "Subprocess
// strategy") actually runs: it re-reads the single goal named by its
// environment, dispatches it in-process against an in-memory bus (no
// Schedulers configured, since an isolated worker must execute rather
// than schedule again), and exits.
//
// Using a fresh in-process store.Memory here means this worker does not
// see the requesting daemon's goal state: it always runs in a process of
// its own (a subprocess fork or a Kubernetes Job container), and the
// process-pool strategy runs goals inside the daemon without calling
// this function. A production deployment that forks real subprocesses or
// Kubernetes Jobs needs a Backend that is actually reachable across
// process boundaries; this core does not ship one (§8 Non-goals).
func runIsolatedWorker(ctx context.Context, cfg *config.Config, line logging.Line) error {
	goalSetID := os.Getenv(scheduler.EnvGoalSetID)
	uniqueName := os.Getenv(scheduler.EnvGoalUniqueName)
	environment := os.Getenv(scheduler.EnvGoalEnvironment)
	if goalSetID == "" || uniqueName == "" {
		return fmt.Errorf("sdmd: isolated worker missing %s/%s", scheduler.EnvGoalSetID, scheduler.EnvGoalUniqueName)
	}

	_, verifier, err := loadKeys(cfg)
	if err != nil {
		return err
	}

	backend := store.NewMemoryBackend()
	e, err := backend.FetchGoal(ctx, goalSetID, uniqueName, environment)
	if err != nil {
		return fmt.Errorf("sdmd: isolated worker fetching goal: %w", err)
	}
	if e == nil {
		return fmt.Errorf("sdmd: isolated worker found no goal %s/%s", goalSetID, uniqueName)
	}

	memBus := bus.NewMemory()
	dispatcher := &dispatch.Dispatcher{
		Registration:    cfg.Registration,
		Verifier:        verifier,
		Implementations: dispatch.NewRegistry(),
		SetState:        &dispatch.BackendSetState{Backend: backend},
		Backend:         backend,
		Bus:             memBus,
		Logger:          line,
	}

	if err := dispatcher.Dispatch(ctx, e); err != nil {
		line.Warn("sdmd: isolated worker dispatch failed", "goal", e.Key(), "err", err)
		return err
	}
	return nil
}
