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

// Command sdmd runs the delivery-goal orchestration core described by
// spec.md: the goal planner, dispatcher, state engine, and completion
// reactor wired against a NATS bus and the registration's YAML rule
// file. Re-exec'd with ATOMIST_ISOLATED_GOAL=true, it instead runs as
// the short-lived isolated worker the subprocess scheduler strategy
// forks (§4.6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdmcore/engine/internal/config"
	"github.com/sdmcore/engine/internal/logging"
	"github.com/sdmcore/engine/pkg/scheduler"
)

func main() {
	var configPath, adminAddr, metricsAddr string

	root := &cobra.Command{
		Use:   "sdmd",
		Short: "sdmd runs the delivery-goal orchestration core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, adminAddr, metricsAddr)
		},
	}
	root.Flags().StringVar(&configPath, "config", "sdm.yaml", "path to the registration's YAML rule/config file")
	root.Flags().StringVar(&adminAddr, "admin-addr", ":8090", "address the admin HTTP surface listens on")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, adminAddr, metricsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	development := os.Getenv("SDM_ENV") != "production"
	zlog, err := logging.New(development, "")
	if err != nil {
		return fmt.Errorf("sdmd: building logger: %w", err)
	}
	defer zlog.Sync()

	ctx = logging.WithContext(ctx, logging.Bridge(zlog))
	line := logging.NewLine(zlog)

	if os.Getenv(scheduler.EnvIsolatedGoal) == "true" {
		return runIsolatedWorker(ctx, cfg, line)
	}
	return runDaemon(ctx, cfg, line, adminAddr, metricsAddr)
}
