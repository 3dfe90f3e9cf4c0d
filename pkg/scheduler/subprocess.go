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

// Package scheduler implements the isolated-goal scheduler strategies of
// §4.6: subprocess re-exec, Kubernetes Job, and a supplemented
// process-pool strategy.
package scheduler

import (
	"context"
	"os"
	"os/exec"

	"github.com/google/uuid"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/dispatch"
)

// Environment variable names consumed by an isolated worker (§6).
const (
	EnvIsolatedGoal     = "ATOMIST_ISOLATED_GOAL"
	EnvIsolatedGoalInit = "ATOMIST_ISOLATED_GOAL_INIT"
	EnvGoalSetID        = "ATOMIST_GOAL_SET_ID"
	EnvGoalUniqueName   = "ATOMIST_GOAL_UNIQUE_NAME"
	EnvGoalEnvironment  = "ATOMIST_GOAL_ENVIRONMENT"
	EnvGoalID           = "ATOMIST_GOAL_ID"
	EnvGoalTeam         = "ATOMIST_GOAL_TEAM"
	EnvGoalTeamName     = "ATOMIST_GOAL_TEAM_NAME"
	EnvCorrelationID    = "ATOMIST_CORRELATION_ID"
	EnvDeploymentName   = "ATOMIST_DEPLOYMENT_NAME"
	EnvDeploymentNS     = "ATOMIST_DEPLOYMENT_NAMESPACE"
)

// Subprocess forks a worker process that re-executes this same binary in
// isolated-goal mode (§4.6 "Subprocess strategy").
type Subprocess struct {
	// BinaryPath is the path to re-exec; defaults to os.Args[0].
	BinaryPath    string
	WorkspaceID   string
	WorkspaceName string
	CorrelationID func() string
	// Runner launches cmd; overridable for tests. Production wires
	// runExec, which starts the process and does not wait for it to exit.
	Runner func(ctx context.Context, cmd *exec.Cmd) error
}

// NewSubprocess returns a Subprocess scheduler with production defaults.
func NewSubprocess(workspaceID, workspaceName string) *Subprocess {
	return &Subprocess{
		BinaryPath:    os.Args[0],
		WorkspaceID:   workspaceID,
		WorkspaceName: workspaceName,
		CorrelationID: uuid.NewString,
		Runner:        runExec,
	}
}

// Supports claims any goal explicitly marked isolated with the
// "subprocess" strategy, or isolated with no strategy named (the
// package's own default, since it requires no external cluster).
func (s *Subprocess) Supports(inv dispatch.Invocation) bool {
	g := inv.Goal
	return g.Isolated && (g.IsolationStrategy == "" || g.IsolationStrategy == "subprocess")
}

// Schedule launches the worker process with the environment described in
// §4.6 and returns once Runner returns; with runExec that is as soon as
// the process has started, and its exit code is not observed. A
// successful launch is reported as phase "scheduled"; the worker writes
// the goal's real terminal state to the backend itself (the dispatcher
// only reports whether the fork succeeded).
func (s *Subprocess) Schedule(ctx context.Context, inv dispatch.Invocation) (dispatch.Outcome, error) {
	g := inv.Goal
	cmd := exec.CommandContext(ctx, s.BinaryPath)
	cmd.Env = append(os.Environ(),
		EnvIsolatedGoal+"=true",
		EnvGoalSetID+"="+g.GoalSetID,
		EnvGoalUniqueName+"="+g.UniqueName,
		EnvGoalEnvironment+"="+g.Environment,
		EnvCorrelationID+"="+s.CorrelationID(),
		EnvGoalTeam+"="+s.WorkspaceID,
		EnvGoalTeamName+"="+s.WorkspaceName,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := s.Runner(ctx, cmd); err != nil {
		return dispatch.Outcome{}, sdmerrors.Wrap(sdmerrors.KindScheduler, err, "scheduler: subprocess launch failed")
	}
	return dispatch.Outcome{Code: 0, Phase: "scheduled"}, nil
}

func runExec(ctx context.Context, cmd *exec.Cmd) error {
	return cmd.Start()
}
