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

// Package cancel implements the goal-set cancellation admin surface of
// §4.9: list pending sets for a registration, cancel one, or cancel all.
package cancel

import (
	"context"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/bus"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/store"
)

// Service is the cancellation admin surface of §4.9.
type Service struct {
	Registration string
	Backend      store.Backend
	Bus          bus.Bus
}

// List returns every goal set still pending for this registration.
func (s *Service) List(ctx context.Context) ([]*goal.Set, error) {
	sets, err := s.Backend.ListPendingSets(ctx, s.Registration)
	if err != nil {
		return nil, sdmerrors.Wrap(sdmerrors.KindTransient, err, "cancel: listing pending sets")
	}
	return sets, nil
}

// CancelOne cancels the named set. It is idempotent: goals already
// terminal are left as they are, so canceling a set again persists and
// publishes nothing. Each newly canceled goal is persisted and published
// to CategoryGoalCompleted; no set-level record is published, only the
// set's cached persisted state is set to canceled. Returns false if no
// set by that id is pending for this registration.
func (s *Service) CancelOne(ctx context.Context, goalSetID string) (bool, error) {
	sets, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, set := range sets {
		if set.GoalSetID == goalSetID {
			return true, s.cancelAndEmit(ctx, set)
		}
	}
	return false, nil
}

// CancelAll cancels every pending set for this registration and returns
// how many were canceled.
func (s *Service) CancelAll(ctx context.Context) (int, error) {
	sets, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, set := range sets {
		if err := s.cancelAndEmit(ctx, set); err != nil {
			return 0, err
		}
	}
	return len(sets), nil
}

func (s *Service) cancelAndEmit(ctx context.Context, set *goal.Set) error {
	canceled := goal.CancelSet(set)
	for _, g := range canceled {
		if err := s.Backend.UpdateGoal(ctx, g); err != nil {
			return sdmerrors.Wrap(sdmerrors.KindTransient, err, "cancel: persisting canceled goal")
		}
		if s.Bus != nil {
			if err := s.Bus.Publish(ctx, bus.CategoryGoalCompleted, g); err != nil {
				return sdmerrors.Wrap(sdmerrors.KindTransient, err, "cancel: publishing canceled goal")
			}
		}
	}
	set.CachePersistedState(goal.SetCanceled)
	return nil
}
