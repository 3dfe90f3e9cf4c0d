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

// Package planner turns a push, plus a set of ordered push-test rules,
// into a signed goal set (§4.2).
package planner

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/push"
	"github.com/sdmcore/engine/pkg/sign"
)

// MergePolicy controls what happens when more than one rule's push test
// matches the same push.
type MergePolicy string

const (
	// MergeAdditive contributes every matching rule's goals (default).
	MergeAdditive MergePolicy = "additive"
	// MergeReplace keeps only the first matching rule's goals.
	MergeReplace MergePolicy = "replace"
)

// Rule pairs a push test with the goal templates it contributes when the
// test matches.
type Rule struct {
	Name  string
	Test  *push.Test
	Goals []goal.Template
}

// StatusPublisher is the external code-status surface (§6): PUT a commit
// status keyed by SHA. The planner only calls it with an in-progress
// style state after a non-empty plan.
type StatusPublisher interface {
	PublishPending(ctx push.Context, sha, description string) error
}

// SetListener observes a freshly planned goal set (the "goals-set-listener"
// hook of §4.2). Implementations must not block the planner indefinitely;
// the broadcaster here does not enforce a timeout itself — that is a
// concern of the listener's own collaborators.
type SetListener func(set *goal.Set)

// IDGenerator produces a fresh opaque goal-set id per invocation.
type IDGenerator func() string

// Planner evaluates ordered rules against a push and emits a signed goal
// set.
type Planner struct {
	Evaluator   *push.Evaluator
	Rules       []Rule
	MergePolicy MergePolicy
	Signer      *sign.Signer // nil disables signing
	NewID       IDGenerator
	Listeners   []SetListener
	Status      StatusPublisher
	Registration string
	Version      string
	Now          func() time.Time
}

// New constructs a Planner with sane defaults for optional fields.
func New(evaluator *push.Evaluator, rules []Rule, registration, version string) *Planner {
	return &Planner{
		Evaluator:    evaluator,
		Rules:        rules,
		MergePolicy:  MergeAdditive,
		NewID:        uuid.NewString,
		Registration: registration,
		Version:      version,
		Now:          time.Now,
	}
}

// Plan applies the ordered rules to ctx.Push and returns the resulting
// goal set (§4.2). The set is rejected with a validation error if its
// preConditions graph is cyclic (§9 design note), before any goal is
// emitted or signed.
func (p *Planner) Plan(ctx push.Context) (*goal.Set, error) {
	templates, err := p.matchingTemplates(ctx)
	if err != nil {
		return nil, err
	}

	set := &goal.Set{
		GoalSetID: p.NewID(),
		Repo:      ctx.Push.Repo,
		SHA:       ctx.Push.After,
		Branch:    ctx.Push.Branch,
	}

	events := make([]*goal.Event, 0, len(templates))
	for _, tmpl := range templates {
		e := p.instantiate(set, tmpl, ctx)
		e.State = leafOrInternalState(e, tmpl)
		events = append(events, e)
	}
	set.Goals = events

	if err := goal.ValidateAcyclic(events); err != nil {
		return nil, err
	}

	for _, e := range events {
		if p.Signer != nil {
			if err := p.Signer.Sign(e); err != nil {
				return nil, errors.Wrap(err, "planner: signing goal event")
			}
		}
	}

	p.broadcast(set)

	if len(events) > 0 && p.Status != nil {
		if err := p.Status.PublishPending(ctx, set.SHA, "Planning goals"); err != nil {
			return set, sdmerrors.Wrap(sdmerrors.KindTransient, err, "planner: publishing pending status")
		}
	}

	return set, nil
}

func (p *Planner) matchingTemplates(ctx push.Context) ([]goal.Template, error) {
	var out []goal.Template
	for _, rule := range p.Rules {
		matched, err := p.Evaluator.Evaluate(ctx, rule.Test)
		if err != nil {
			return nil, errors.Wrapf(err, "planner: evaluating rule %q", rule.Name)
		}
		if !matched {
			continue
		}
		out = append(out, rule.Goals...)
		if p.MergePolicy == MergeReplace {
			break
		}
	}
	return out, nil
}

func (p *Planner) instantiate(set *goal.Set, tmpl goal.Template, ctx push.Context) *goal.Event {
	now := p.Now().Unix()
	return &goal.Event{
		GoalSetID:           set.GoalSetID,
		UniqueName:          tmpl.UniqueName,
		Environment:         tmpl.Environment,
		Name:                tmpl.UniqueName,
		SHA:                 set.SHA,
		Branch:              set.Branch,
		Repo:                set.Repo,
		Timestamp:           now,
		Version:             1,
		PreConditions:       tmpl.PreConditions,
		Fulfillment:         goal.Fulfillment{Name: p.Registration, Method: goal.MethodSdm},
		RetryFeasible:       tmpl.RetryFeasible,
		ApprovalRequired:    tmpl.ApprovalRequired,
		PreApprovalRequired: tmpl.PreApprovalRequired,
		Isolated:            tmpl.Isolated,
		IsolationStrategy:   tmpl.IsolationStrategy,
	}
}

// leafOrInternalState derives a goal's initial state per §4.2: leaves (no
// preConditions) start requested, unless preApprovalRequired, in which
// case they start waiting_for_pre_approval; internal nodes start planned.
func leafOrInternalState(e *goal.Event, tmpl goal.Template) goal.State {
	if len(e.PreConditions) > 0 {
		return goal.StatePlanned
	}
	if tmpl.PreApprovalRequired {
		return goal.StateWaitingForPreApproval
	}
	return goal.StateRequested
}

func (p *Planner) broadcast(set *goal.Set) {
	for _, l := range p.Listeners {
		l(set)
	}
}
