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

package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/sdmcore/engine/internal/sdmerrors"
)

const defaultCleanupInterval = 2 * time.Hour

// LineLogger is the minimal logging surface cleanup needs.
type LineLogger interface {
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
}

// Cleanup periodically deletes succeeded Jobs whose name carries this
// deployment's prefix (§4.6 "Cleanup"). It must run only on the master
// cluster instance — the caller is expected to gate Start behind
// k8s.io/client-go/tools/leaderelection and only call it once elected
// (see RunAsMaster in leader.go for the thin wrapper this package exposes).
type Cleanup struct {
	k        *Kubernetes
	interval time.Duration
	logger   LineLogger
	cron     *cron.Cron
}

// NewCleanup builds a Cleanup job for k. interval defaults to 2h per
// §4.6.
func NewCleanup(k *Kubernetes, interval time.Duration, logger LineLogger) *Cleanup {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &Cleanup{k: k, interval: interval, logger: logger, cron: cron.New()}
}

// Start schedules the cleanup to run every interval until ctx is
// canceled. Callers must only invoke Start after winning leader election.
func (c *Cleanup) Start(ctx context.Context) error {
	spec := "@every " + c.interval.String()
	_, err := c.cron.AddFunc(spec, func() {
		if err := c.runOnce(ctx); err != nil {
			c.logger.Warn("scheduler: job cleanup failed", "err", err)
		}
	})
	if err != nil {
		return sdmerrors.Wrap(sdmerrors.KindConfiguration, err, "scheduler: scheduling cleanup")
	}
	c.cron.Start()
	go func() {
		<-ctx.Done()
		c.cron.Stop()
	}()
	return nil
}

func (c *Cleanup) runOnce(ctx context.Context) error {
	jobs, err := c.k.Client.BatchV1().Jobs(c.k.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "app.kubernetes.io/managed-by=" + c.k.DeploymentName,
	})
	if err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "scheduler: listing jobs for cleanup")
	}

	var deleted int
	for _, job := range jobs.Items {
		if !strings.HasPrefix(job.Name, c.k.DeploymentName+"-job-") {
			continue
		}
		if job.Status.Succeeded <= 0 {
			continue
		}
		if err := c.k.Client.BatchV1().Jobs(c.k.Namespace).Delete(ctx, job.Name, metav1.DeleteOptions{}); err != nil {
			c.logger.Warn("scheduler: failed deleting succeeded job", "job", job.Name, "err", err)
			continue
		}
		deleted++
	}
	c.logger.Info("scheduler: job cleanup complete", "deleted", deleted)
	return nil
}
