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

// Package metrics registers the Prometheus collectors the core carries
// as ambient observability (§5): goals planned, state transitions,
// dispatch latency, scheduler launches, and log-flush failures.
// spec.md's non-goals exclude durable history, not instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the core publishes.
type Metrics struct {
	GoalsPlanned       *prometheus.CounterVec
	StateTransitions   *prometheus.CounterVec
	DispatchLatency    *prometheus.HistogramVec
	SchedulerLaunches  *prometheus.CounterVec
	LogFlushFailures   prometheus.Counter
}

// New registers every collector against reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GoalsPlanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "goals_planned_total",
			Help:      "Number of goals instantiated by the planner, by goal unique name.",
		}, []string{"goal"}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "goal_state_transitions_total",
			Help:      "Number of goal state transitions, by from and to state.",
		}, []string{"from", "to"}),
		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdm",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching one goal, by fulfillment method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		SchedulerLaunches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "scheduler_launches_total",
			Help:      "Number of isolated-worker launches, by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		LogFlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "progress_log_flush_failures_total",
			Help:      "Number of progress-log sink flushes that fell back to a local sink.",
		}),
	}
	reg.MustRegister(m.GoalsPlanned, m.StateTransitions, m.DispatchLatency, m.SchedulerLaunches, m.LogFlushFailures)
	return m
}
