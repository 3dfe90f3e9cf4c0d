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
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/sdmcore/engine/internal/config"
	"github.com/sdmcore/engine/internal/logging"
	"github.com/sdmcore/engine/internal/metrics"
	"github.com/sdmcore/engine/pkg/bus"
	"github.com/sdmcore/engine/pkg/cancel"
	"github.com/sdmcore/engine/pkg/dispatch"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/planner"
	"github.com/sdmcore/engine/pkg/push"
	"github.com/sdmcore/engine/pkg/reactor"
	"github.com/sdmcore/engine/pkg/scheduler"
	"github.com/sdmcore/engine/pkg/sign"
	"github.com/sdmcore/engine/pkg/stateengine"
	"github.com/sdmcore/engine/pkg/store"

	"github.com/sdmcore/engine/pkg/adminhttp"
)

// runDaemon wires the full chain of §2: a push lands on the ingest
// endpoint, the planner turns it into a signed goal set, the dispatcher
// (subscribed to the requested-goal category) runs or schedules each
// goal, the state engine advances dependents on every success, and the
// completion reactor reports a failure status as soon as a goal fails and
// a success status once every goal in the set has succeeded.
func runDaemon(ctx context.Context, cfg *config.Config, line logging.Line, adminAddr, metricsAddr string) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	b, err := bus.Connect(cfg.NATSURL)
	if err != nil {
		return err
	}
	defer b.Close()

	signer, verifier, err := loadKeys(cfg)
	if err != nil {
		return err
	}

	backend := store.NewMemoryBackend()
	cache := buildCache(cfg)

	evaluator, err := buildEvaluator(ctx, cfg)
	if err != nil {
		return err
	}

	rules, err := buildRules(cfg.Rules)
	if err != nil {
		return err
	}

	var status *reactor.SourceControlStatus
	if cfg.SourceControlStatusURL != "" {
		status = reactor.NewSourceControlStatus(&http.Client{Timeout: 10 * time.Second}, cfg.SourceControlStatusURL, cfg.Registration, "")
	}

	plan := planner.New(evaluator, rules, cfg.Registration, cfg.Version)
	plan.Signer = signer
	if status != nil {
		plan.Status = status
	}

	implementations := dispatch.NewRegistry()

	schedulers, cleanupStop, err := buildSchedulers(ctx, cfg, line, implementations, m)
	if err != nil {
		return err
	}
	if cleanupStop != nil {
		defer cleanupStop()
	}

	dispatcher := &dispatch.Dispatcher{
		Registration:    cfg.Registration,
		Verifier:        verifier,
		Implementations: implementations,
		Schedulers:      schedulers,
		SetState:        &dispatch.BackendSetState{Backend: backend},
		Backend:         backend,
		Bus:             b,
		Logger:          line,
	}
	unsubDispatch, err := b.Subscribe(bus.CategoryGoalRequested, func(ctx context.Context, payload []byte) error {
		var e goal.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("sdmd: decoding requested-goal payload: %w", err)
		}
		fromState := e.State
		start := time.Now()
		err := dispatcher.Dispatch(ctx, &e)
		m.DispatchLatency.WithLabelValues(string(e.Fulfillment.Method)).Observe(time.Since(start).Seconds())
		m.StateTransitions.WithLabelValues(string(fromState), string(e.State)).Inc()
		return err
	})
	if err != nil {
		return err
	}
	defer unsubDispatch()

	engine := &stateengine.Engine{Bus: b, Backend: backend, Signer: signer, Logger: line}
	unsubEngine, err := engine.Start()
	if err != nil {
		return err
	}
	defer unsubEngine()

	react := &reactor.Reactor{Registration: cfg.Registration, Bus: b, Backend: backend, Logger: line}
	if status != nil {
		react.Status = status
	}
	unsubReactor, err := react.Start()
	if err != nil {
		return err
	}
	defer unsubReactor()

	cancelSvc := &cancel.Service{Registration: cfg.Registration, Backend: backend, Bus: b}
	admin := &adminhttp.Server{Cancel: cancelSvc, Preferences: cache, Registration: cfg.Registration}

	consumer := &pushConsumer{Planner: plan, Backend: backend, Bus: b, Logger: line, Metrics: m}
	unsubConsumer, err := b.Subscribe(bus.CategoryPushObserved, consumer.handle)
	if err != nil {
		return err
	}
	defer unsubConsumer()

	ingest := &pushIngest{Bus: b, Logger: line}
	mux := http.NewServeMux()
	mux.Handle("/", admin.Router())
	mux.Handle("/push", ingest)
	adminSrv := &http.Server{Addr: adminAddr, Handler: mux}

	metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}

	errCh := make(chan error, 2)
	go func() { errCh <- serveUntilShutdown(ctx, adminSrv) }()
	go func() { errCh <- serveUntilShutdown(ctx, metricsSrv) }()

	<-ctx.Done()
	line.Info("sdmd: shutting down")
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			line.Warn("sdmd: server shutdown error", "err", err)
		}
	}
	return nil
}

func serveUntilShutdown(ctx context.Context, srv *http.Server) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func loadKeys(cfg *config.Config) (*sign.Signer, *sign.Verifier, error) {
	keyBytes, err := os.ReadFile(cfg.SigningKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("sdmd: reading signing key: %w", err)
	}
	signer, err := sign.NewSigner(keyBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("sdmd: parsing signing key: %w", err)
	}

	blocks := make([][]byte, 0, len(cfg.VerifyingKeyPaths))
	for _, p := range cfg.VerifyingKeyPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("sdmd: reading verifying key %s: %w", p, err)
		}
		blocks = append(blocks, b)
	}
	verifier, err := sign.NewVerifier(blocks...)
	if err != nil {
		return nil, nil, fmt.Errorf("sdmd: parsing verifying keys: %w", err)
	}
	return signer, verifier, nil
}

func buildCache(cfg *config.Config) store.Cache {
	if cfg.Redis.Addr == "" {
		return store.NewMemoryCache()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	return store.NewRedisCache(client, 24*time.Hour)
}

func buildEvaluator(ctx context.Context, cfg *config.Config) (*push.Evaluator, error) {
	registry := push.NewRegistry()
	for _, p := range cfg.OPA {
		module, err := os.ReadFile(p.ModulePath)
		if err != nil {
			return nil, fmt.Errorf("sdmd: reading rego module %s: %w", p.ModulePath, err)
		}
		factory, err := push.NewOPAFactory(ctx, p.Name+".rego", string(module), p.Query)
		if err != nil {
			return nil, fmt.Errorf("sdmd: compiling rego policy %s: %w", p.Name, err)
		}
		registry.Register(p.Name, factory)
	}
	return push.NewEvaluator(registry), nil
}

// buildSchedulers wires the subprocess and process-pool strategies
// unconditionally (§4.6) and the Kubernetes strategy plus its leader-
// gated cleanup job when a namespace/deployment is configured. The
// returned stop func cancels the cleanup goroutine; it is nil when no
// Kubernetes scheduling was wired.
func buildSchedulers(ctx context.Context, cfg *config.Config, line logging.Line, implementations *dispatch.Registry, m *metrics.Metrics) ([]dispatch.Scheduler, func(), error) {
	subprocess := scheduler.NewSubprocess(cfg.Registration, cfg.Registration)

	runInPool := func(ctx context.Context, inv dispatch.Invocation) (out dispatch.Outcome) {
		outcome := "success"
		defer func() {
			if r := recover(); r != nil {
				failed := goal.StateFailure
				out = dispatch.Outcome{Code: 1, State: &failed, Message: "process-pool executor panic"}
				outcome = "failure"
			}
			m.SchedulerLaunches.WithLabelValues("process-pool", outcome).Inc()
		}()
		impl, ok := implementations.Resolve(inv.Goal.UniqueName)
		if !ok {
			failed := goal.StateFailure
			outcome = "failure"
			return dispatch.Outcome{Code: 1, State: &failed, Message: "no implementation registered for " + inv.Goal.UniqueName}
		}
		out = impl.Executor.Execute(ctx, inv)
		if out.Code != 0 {
			outcome = "failure"
		}
		return out
	}
	pool := scheduler.NewProcessPool(4, runInPool)

	schedulers := []dispatch.Scheduler{subprocess, pool}

	if cfg.Kubernetes.Namespace == "" || cfg.Kubernetes.DeploymentName == "" {
		return schedulers, nil, nil
	}

	restCfg, err := rest.InClusterConfig()
	if err != nil {
		line.Warn("sdmd: no in-cluster config, kubernetes scheduling disabled", "err", err)
		return schedulers, nil, nil
	}
	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		line.Warn("sdmd: building kubernetes client failed, kubernetes scheduling disabled", "err", err)
		return schedulers, nil, nil
	}

	podTemplate, err := fetchPodTemplate(ctx, client, cfg.Kubernetes.Namespace, cfg.Kubernetes.DeploymentName)
	if err != nil {
		line.Warn("sdmd: reading own pod template failed, kubernetes scheduling disabled", "err", err)
		return schedulers, nil, nil
	}

	k8s := &scheduler.Kubernetes{
		Client:         client,
		Namespace:      cfg.Kubernetes.Namespace,
		DeploymentName: cfg.Kubernetes.DeploymentName,
		PodTemplate:    podTemplate,
		WorkspaceID:    cfg.Registration,
		WorkspaceName:  cfg.Registration,
	}
	schedulers = append(schedulers, k8s)

	stopCh := make(chan struct{})
	go func() {
		identity := cfg.Kubernetes.DeploymentName + "-" + os.Getenv("HOSTNAME")
		electedCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			<-stopCh
			cancel()
		}()
		err := scheduler.RunAsMaster(electedCtx, client, cfg.Kubernetes.Namespace, cfg.Kubernetes.DeploymentName+"-cleanup", identity, func(leaderCtx context.Context) {
			cleanup := scheduler.NewCleanup(k8s, 0, line)
			if err := cleanup.Start(leaderCtx); err != nil {
				line.Warn("sdmd: starting job cleanup failed", "err", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			line.Warn("sdmd: leader election exited", "err", err)
		}
	}()

	return schedulers, func() { close(stopCh) }, nil
}

func fetchPodTemplate(ctx context.Context, client kubernetes.Interface, namespace, name string) (corev1.PodTemplateSpec, error) {
	dep, err := client.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return corev1.PodTemplateSpec{}, err
	}
	return dep.Spec.Template, nil
}
