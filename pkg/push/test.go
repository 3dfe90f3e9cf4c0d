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

package push

import (
	"path"
	"regexp"
	"sync"

	"github.com/go-faster/errors"
)

// Kind tags the node variants of the push-test tree (§4.1). The tree is a
// tagged union rather than an interface-per-kind hierarchy: the DSL is
// authored as data (YAML rules), so a closed set of kinds plus a visitor
// evaluator is the more honest fit than subtype polymorphism.
type Kind string

const (
	KindHasFile             Kind = "hasFile"
	KindIsRepo              Kind = "isRepo"
	KindIsBranch            Kind = "isBranch"
	KindIsDefaultBranch     Kind = "isDefaultBranch"
	KindIsGoal              Kind = "isGoal"
	KindIsMaterialChange    Kind = "isMaterialChange"
	KindHasFileContaining   Kind = "hasFileContaining"
	KindHasResourceProvider Kind = "hasResourceProvider"
	KindHasCommit           Kind = "hasCommit"
	KindNot                 Kind = "not"
	KindAnd                 Kind = "and"
	KindOr                  Kind = "or"
	KindUse                 Kind = "use"
)

// IsGoalSpec is the payload of an isGoal node.
type IsGoalSpec struct {
	NameRegex  string `yaml:"nameRegex"`
	State      string `yaml:"state"`
	OutputRegex string `yaml:"outputRegex,omitempty"`
	DataRegex   string `yaml:"dataRegex,omitempty"`
	Nested      *Test  `yaml:"nested,omitempty"`
}

// MaterialChangeSpec is the payload of an isMaterialChange node.
type MaterialChangeSpec struct {
	Directories []string `yaml:"directories,omitempty"`
	Extensions  []string `yaml:"extensions,omitempty"`
	Files       []string `yaml:"files,omitempty"`
	Globs       []string `yaml:"globs,omitempty"`
}

// FileContainingSpec is the payload of a hasFileContaining node.
type FileContainingSpec struct {
	Globs         []string `yaml:"globs"`
	ContentRegex string   `yaml:"contentRegex"`
}

// ResourceProviderSpec is the payload of a hasResourceProvider node.
type ResourceProviderSpec struct {
	Type string `yaml:"type"`
	Name string `yaml:"name,omitempty"`
}

// Test is one node of the push-test tree. Exactly one payload field is
// populated per Kind; the evaluator switches on Kind, never on which
// field is non-nil, so a malformed node (wrong payload for its kind)
// fails fast instead of silently evaluating the wrong field.
type Test struct {
	Kind Kind `yaml:"kind"`

	Path  string `yaml:"path,omitempty"`  // hasFile
	Regex string `yaml:"regex,omitempty"` // isRepo, isBranch, hasCommit
	Name  string `yaml:"name,omitempty"`  // use

	IsGoal           *IsGoalSpec          `yaml:"isGoal,omitempty"`
	MaterialChange   *MaterialChangeSpec  `yaml:"materialChange,omitempty"`
	FileContaining   *FileContainingSpec  `yaml:"fileContaining,omitempty"`
	ResourceProvider *ResourceProviderSpec `yaml:"resourceProvider,omitempty"`

	Subtests []*Test `yaml:"subtests,omitempty"` // not (len 1), and/or (len >= 1)
}

// Predicate is a leaf evaluator: given a context, decide true/false, or
// report an error for malformed input or a transient I/O failure. Per
// §4.1 failure semantics these are NOT conflated — the evaluator
// propagates the error rather than coercing it to false.
type Predicate func(ctx Context) (bool, error)

// Factory builds a Predicate for a named extension test, keyed by the
// `use`/string node. Policy-as-data extensions (e.g. OPA) register a
// Factory; this package never imports a specific extension implementation.
type Factory func(ctx Context) (bool, error)

// Registry resolves `use` nodes to registered extension predicates.
// Safe for concurrent registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	named map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{named: make(map[string]Factory)}
}

// Register adds a named extension predicate factory. Re-registering a
// name overwrites the previous factory, matching how a hot-reloaded rule
// file would re-seed a fresh registry rather than append to a stale one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[name] = f
}

func (r *Registry) lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.named[name]
	return f, ok
}

// memo caches lazily-evaluated, I/O-bound leaf results per evaluation so
// a test tree referencing the same glob or goal lookup twice in `and`/`or`
// branches does only the I/O once.
type memo struct {
	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	ok  bool
	err error
}

func newMemo() *memo { return &memo{cache: make(map[string]cacheEntry)} }

func (m *memo) get(key string) (cacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[key]
	return e, ok
}

func (m *memo) put(key string, e cacheEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = e
}

// Evaluator walks a Test tree against a Context, resolving `use` nodes
// against a Registry.
type Evaluator struct {
	Registry *Registry
}

func NewEvaluator(reg *Registry) *Evaluator {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Evaluator{Registry: reg}
}

// Evaluate performs the depth-first walk described in §4.1: and/or
// short-circuit in input order, not negates, leaves memoize per call.
func (e *Evaluator) Evaluate(ctx Context, t *Test) (bool, error) {
	if t == nil {
		return false, errors.New("push test: nil node")
	}
	m := newMemo()
	return e.eval(ctx, t, m)
}

func (e *Evaluator) eval(ctx Context, t *Test, m *memo) (bool, error) {
	switch t.Kind {
	case KindAnd:
		for _, sub := range t.Subtests {
			ok, err := e.eval(ctx, sub, m)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case KindOr:
		for _, sub := range t.Subtests {
			ok, err := e.eval(ctx, sub, m)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case KindNot:
		if len(t.Subtests) != 1 {
			return false, errors.Newf("push test: not requires exactly one subtest, got %d", len(t.Subtests))
		}
		ok, err := e.eval(ctx, t.Subtests[0], m)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case KindUse:
		f, ok := e.Registry.lookup(t.Name)
		if !ok {
			return false, errors.Newf("push test: no extension registered for %q", t.Name)
		}
		return memoized(m, "use:"+t.Name, func() (bool, error) { return f(ctx) })

	case KindHasFile:
		if t.Path == "" {
			return false, errors.New("push test: hasFile requires a path")
		}
		return memoized(m, "hasFile:"+t.Path, func() (bool, error) {
			return ctx.Files.HasFile(ctx, t.Path)
		})

	case KindIsRepo:
		return matchRegex(t.Regex, ctx.Push.Repo.Name)

	case KindIsBranch:
		return matchRegex(t.Regex, ctx.Push.Branch)

	case KindIsDefaultBranch:
		return ctx.Push.IsDefaultBranch(), nil

	case KindHasCommit:
		for _, c := range ctx.Push.Commits {
			ok, err := matchRegex(t.Regex, c.Message)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case KindIsMaterialChange:
		return e.evalMaterialChange(t.MaterialChange, ctx.Push.ChangedFiles)

	case KindHasFileContaining:
		if t.FileContaining == nil {
			return e.evalFileContaining(ctx, nil)
		}
		return memoized(m, "hasFileContaining:"+fingerprint(t.FileContaining.Globs)+t.FileContaining.ContentRegex, func() (bool, error) {
			return e.evalFileContaining(ctx, t.FileContaining)
		})

	case KindHasResourceProvider:
		if t.ResourceProvider == nil {
			return false, errors.New("push test: hasResourceProvider requires a spec")
		}
		return memoized(m, "hasResourceProvider:"+t.ResourceProvider.Type+"/"+t.ResourceProvider.Name, func() (bool, error) {
			return ctx.Providers.HasResourceProvider(ctx, t.ResourceProvider.Type, t.ResourceProvider.Name)
		})

	case KindIsGoal:
		if t.IsGoal == nil {
			return e.evalIsGoal(ctx, nil)
		}
		return memoized(m, "isGoal:"+t.IsGoal.NameRegex, func() (bool, error) {
			return e.evalIsGoal(ctx, t.IsGoal)
		})

	default:
		return false, errors.Newf("push test: unknown kind %q", t.Kind)
	}
}

func memoized(m *memo, key string, f func() (bool, error)) (bool, error) {
	if e, ok := m.get(key); ok {
		return e.ok, e.err
	}
	ok, err := f()
	m.put(key, cacheEntry{ok: ok, err: err})
	return ok, err
}

func matchRegex(pattern, value string) (bool, error) {
	if pattern == "" {
		return false, errors.New("push test: empty regex")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, errors.Wrapf(err, "push test: invalid regex %q", pattern)
	}
	return re.MatchString(value), nil
}

func fingerprint(globs []string) string {
	out := ""
	for _, g := range globs {
		out += g + "|"
	}
	return out
}

func (e *Evaluator) evalMaterialChange(spec *MaterialChangeSpec, changed []string) (bool, error) {
	if spec == nil {
		return false, errors.New("push test: isMaterialChange requires a spec")
	}
	for _, f := range changed {
		for _, dir := range spec.Directories {
			if hasPrefix(f, dir) {
				return true, nil
			}
		}
		for _, ext := range spec.Extensions {
			if hasSuffix(f, ext) {
				return true, nil
			}
		}
		for _, file := range spec.Files {
			if f == file {
				return true, nil
			}
		}
		for _, glob := range spec.Globs {
			ok, err := globMatch(glob, f)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

func (e *Evaluator) evalFileContaining(ctx Context, spec *FileContainingSpec) (bool, error) {
	if spec == nil {
		return false, errors.New("push test: hasFileContaining requires a spec")
	}
	re, err := regexp.Compile(spec.ContentRegex)
	if err != nil {
		return false, errors.Wrapf(err, "push test: invalid contentRegex %q", spec.ContentRegex)
	}
	matches, err := ctx.Files.MatchGlobs(ctx, spec.Globs)
	if err != nil {
		return false, errors.Wrap(err, "push test: matching globs")
	}
	for _, path := range matches {
		content, ok, err := ctx.Files.ReadFile(ctx, path)
		if err != nil {
			return false, errors.Wrapf(err, "push test: reading %s", path)
		}
		if ok && re.MatchString(content) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Evaluator) evalIsGoal(ctx Context, spec *IsGoalSpec) (bool, error) {
	if spec == nil {
		return false, errors.New("push test: isGoal requires a spec")
	}
	g, ok, err := ctx.Goals.FindGoal(ctx, spec.NameRegex)
	if err != nil {
		return false, errors.Wrap(err, "push test: looking up goal")
	}
	if !ok {
		return false, nil
	}
	if spec.State != "" && g.State != spec.State {
		return false, nil
	}
	if spec.OutputRegex != "" {
		ok, err := matchRegex(spec.OutputRegex, g.Output)
		if err != nil || !ok {
			return false, err
		}
	}
	if spec.DataRegex != "" {
		ok, err := matchRegex(spec.DataRegex, g.Data)
		if err != nil || !ok {
			return false, err
		}
	}
	if spec.Nested != nil {
		return e.Evaluate(ctx, spec.Nested)
	}
	return true, nil
}

func globMatch(glob, p string) (bool, error) {
	ok, err := path.Match(glob, p)
	if err != nil {
		return false, errors.Wrapf(err, "push test: invalid glob %q", glob)
	}
	return ok, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
