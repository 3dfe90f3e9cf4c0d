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

// Package push models a source-control push and the context a push-test
// tree evaluates against.
package push

import "time"

// Repo identifies a repository on a source-control provider.
type Repo struct {
	Owner      string `yaml:"owner" validate:"required"`
	Name       string `yaml:"name" validate:"required"`
	ProviderID string `yaml:"providerId" validate:"required"`
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name + "/" + r.ProviderID
}

// Committer identifies whoever authored the push's tip commit.
type Committer struct {
	Login string
	Email string
}

// Commit is a single commit carried by a push.
type Commit struct {
	SHA     string
	Message string
}

// Push is a snapshot of a source-control push: exactly the fields a push
// test needs, nothing the control plane would have to persist durably.
type Push struct {
	Repo             Repo
	Branch           string
	Before           string
	After            string
	DefaultBranch    string // empty means unknown
	IsFirstPushToRepo bool
	Committer        Committer
	Commits          []Commit
	ChangedFiles     []string
	Timestamp        time.Time
}

// IsDefaultBranch reports whether this push targets the repo's default
// branch. Per the open question on an absent default branch: an empty
// DefaultBranch never matches, it never defaults to "master" or the
// pushed branch's own name.
func (p Push) IsDefaultBranch() bool {
	return p.DefaultBranch != "" && p.Branch == p.DefaultBranch
}

// FileReader resolves the content of a file in the pushed tree, and
// whether a path exists at all. Implementations perform I/O (a git
// checkout, a provider content API) and may return an error distinct
// from "not found" for transient failures.
type FileReader interface {
	HasFile(ctx Context, path string) (bool, error)
	ReadFile(ctx Context, path string) (string, bool, error)
	MatchGlobs(ctx Context, globs []string) ([]string, error)
}

// ResourceProviderLookup answers whether a workspace has a configured
// resource provider of a given type/name, e.g. a container registry.
type ResourceProviderLookup interface {
	HasResourceProvider(ctx Context, providerType, name string) (bool, error)
}

// GoalLookup resolves prior goal state within the same goal set, used by
// the isGoal test kind. Implementations live outside this package (the
// daemon's is in cmd/sdmd); this interface keeps pkg/push from
// importing pkg/goal, which itself imports pkg/push for Repo.
type GoalLookup interface {
	// FindGoal returns the most recent goal event matching nameRegex in
	// the current goal set, or ok=false if none matches.
	FindGoal(ctx Context, nameRegex string) (found GoalSummary, ok bool, err error)
}

// GoalSummary is the minimal goal-event view the isGoal test needs.
type GoalSummary struct {
	UniqueName string
	State      string
	Output     string
	Data       string
}

// Context bundles everything a push-test evaluation needs besides the
// Push itself: addressable channels, credentials, and collaborators are
// modeled narrowly here rather than as a god object, per spec's
// out-of-scope external-collaborator boundary.
type Context struct {
	Push        Push
	Files       FileReader
	Providers   ResourceProviderLookup
	Goals       GoalLookup
	Preferences map[string]string
}
