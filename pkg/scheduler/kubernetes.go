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
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/internal/telemetry"
	"github.com/sdmcore/engine/pkg/dispatch"
)

// Kubernetes clones the SDM's own Pod spec into a Job per goal (§4.6
// "Kubernetes strategy"). It talks to the API server through the plain
// client-go BatchV1 Jobs client — there is no CRD here for
// controller-runtime to reconcile, only a Job this scheduler creates and
// deletes directly.
type Kubernetes struct {
	Client         kubernetes.Interface
	Namespace      string
	DeploymentName string
	// PodTemplate is the SDM's own pod template, read once at startup
	// from its Deployment spec and cloned for every isolated goal.
	PodTemplate corev1.PodTemplateSpec

	WorkspaceID   string
	WorkspaceName string
	CorrelationID func() string
}

func (k *Kubernetes) Supports(inv dispatch.Invocation) bool {
	g := inv.Goal
	return g.Isolated && g.IsolationStrategy == "kubernetes"
}

// JobName returns the deterministic name §4.6 specifies: the Job
// generator must be deterministic for the same (goalSetId, goalName,
// deployment, namespace) per §8's testable property.
func (k *Kubernetes) JobName(goalSetID, goalName string) string {
	prefix := goalSetID
	if len(prefix) > 7 {
		prefix = prefix[:7]
	}
	return fmt.Sprintf("%s-job-%s-%s", k.DeploymentName, prefix, goalName)
}

// BuildJob renders the Job manifest for one isolated goal: single
// container cloned from the SDM pod, restartPolicy Never, the ATOMIST_*
// environment appended, an init-container marker for the repository
// clone, and pod-affinity keyed by goalSetId so goals in the same set
// co-locate.
func (k *Kubernetes) BuildJob(goalSetID, uniqueName, environment string) *batchv1.Job {
	name := k.JobName(goalSetID, uniqueName)
	template := *k.PodTemplate.DeepCopy()
	template.Labels = mergeLabels(template.Labels, map[string]string{"goalSetId": goalSetID})
	template.Spec.RestartPolicy = corev1.RestartPolicyNever

	env := []corev1.EnvVar{
		{Name: EnvIsolatedGoal, Value: "true"},
		{Name: EnvGoalSetID, Value: goalSetID},
		{Name: EnvGoalUniqueName, Value: uniqueName},
		{Name: EnvGoalEnvironment, Value: environment},
		{Name: EnvCorrelationID, Value: k.CorrelationID()},
		{Name: EnvGoalTeam, Value: k.WorkspaceID},
		{Name: EnvGoalTeamName, Value: k.WorkspaceName},
	}
	for i := range template.Spec.Containers {
		template.Spec.Containers[i].Env = append(template.Spec.Containers[i].Env, env...)
	}

	initEnv := append(append([]corev1.EnvVar{}, env...), corev1.EnvVar{Name: EnvIsolatedGoalInit, Value: "true"})
	if len(template.Spec.Containers) > 0 {
		clone := template.Spec.Containers[0].DeepCopy()
		clone.Name = "clone-repo"
		clone.Env = initEnv
		clone.Command = []string{"sdmd", "clone"}
		template.Spec.InitContainers = append(template.Spec.InitContainers, *clone)
	}

	template.Spec.Affinity = &corev1.Affinity{
		PodAffinity: &corev1.PodAffinity{
			PreferredDuringSchedulingIgnoredDuringExecution: []corev1.WeightedPodAffinityTerm{
				{
					Weight: 100,
					PodAffinityTerm: corev1.PodAffinityTerm{
						LabelSelector: &metav1.LabelSelector{
							MatchLabels: map[string]string{"goalSetId": goalSetID},
						},
						TopologyKey: "kubernetes.io/hostname",
					},
				},
			},
		},
	}

	backoff := int32(0)
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: k.Namespace,
			Labels:    map[string]string{"goalSetId": goalSetID, "app.kubernetes.io/managed-by": k.DeploymentName},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoff,
			Template:     template,
		},
	}
}

func mergeLabels(base map[string]string, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Schedule applies the Job manifest idempotently: if a Job by this name
// already exists, it is deleted with foreground propagation and
// recreated ("replace --force"), matching the at-most-once guarantee of
// §5 ("same name replaces, does not create duplicates").
func (k *Kubernetes) Schedule(ctx context.Context, inv dispatch.Invocation) (dispatch.Outcome, error) {
	g := inv.Goal
	job := k.BuildJob(g.GoalSetID, g.UniqueName, g.Environment)
	jobs := k.Client.BatchV1().Jobs(k.Namespace)

	err := telemetry.Wrap(ctx, telemetry.SpanK8sAPICall, func(ctx context.Context) error {
		_, getErr := jobs.Get(ctx, job.Name, metav1.GetOptions{})
		switch {
		case getErr == nil:
			propagation := metav1.DeletePropagationForeground
			if err := jobs.Delete(ctx, job.Name, metav1.DeleteOptions{PropagationPolicy: &propagation}); err != nil && !apierrors.IsNotFound(err) {
				return sdmerrors.Wrap(sdmerrors.KindScheduler, err, "scheduler: deleting existing job")
			}
		case apierrors.IsNotFound(getErr):
			// no existing job, proceed to create
		default:
			return sdmerrors.Wrap(sdmerrors.KindScheduler, getErr, "scheduler: checking for existing job")
		}

		if _, err := jobs.Create(ctx, job, metav1.CreateOptions{}); err != nil {
			return sdmerrors.Wrap(sdmerrors.KindScheduler, err, "scheduler: creating job")
		}
		return nil
	})
	if err != nil {
		return dispatch.Outcome{}, err
	}
	return dispatch.Outcome{Code: 0, Phase: "scheduled"}, nil
}
