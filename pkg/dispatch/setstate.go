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

package dispatch

import (
	"context"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/store"
)

// BackendSetState implements SetStateChecker against the same Backend
// the dispatcher already persists to — admission filter 3 re-checks
// cancellation by re-deriving the set's state, never by trusting a
// separately cached flag.
type BackendSetState struct {
	Backend store.Backend
}

func (b *BackendSetState) IsCanceled(ctx context.Context, goalSetID string) (bool, error) {
	set, err := b.Backend.FetchSet(ctx, goalSetID)
	if err != nil {
		return false, sdmerrors.Wrap(sdmerrors.KindTransient, err, "dispatch: fetching set for cancellation re-check")
	}
	if set == nil {
		return false, nil
	}
	return set.DerivedState() == goal.SetCanceled, nil
}
