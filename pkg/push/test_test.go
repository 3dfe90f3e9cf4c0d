package push

import "testing"

type fakeFiles struct {
	files   map[string]string
	globErr error
}

func (f fakeFiles) HasFile(ctx Context, path string) (bool, error) {
	_, ok := f.files[path]
	return ok, nil
}

func (f fakeFiles) ReadFile(ctx Context, path string) (string, bool, error) {
	c, ok := f.files[path]
	return c, ok, nil
}

func (f fakeFiles) MatchGlobs(ctx Context, globs []string) ([]string, error) {
	if f.globErr != nil {
		return nil, f.globErr
	}
	var out []string
	for path := range f.files {
		for _, g := range globs {
			if ok, _ := globMatch(g, path); ok {
				out = append(out, path)
			}
		}
	}
	return out, nil
}

type fakeProviders struct{ has map[string]bool }

func (f fakeProviders) HasResourceProvider(ctx Context, providerType, name string) (bool, error) {
	return f.has[providerType+"/"+name], nil
}

type fakeGoals struct{ summary GoalSummary; ok bool }

func (f fakeGoals) FindGoal(ctx Context, nameRegex string) (GoalSummary, bool, error) {
	return f.summary, f.ok, nil
}

func baseCtx() Context {
	return Context{
		Push: Push{
			Repo:          Repo{Owner: "o", Name: "myrepo", ProviderID: "github"},
			Branch:        "main",
			DefaultBranch: "main",
			Commits:       []Commit{{SHA: "abc", Message: "fix: widget bug"}},
			ChangedFiles:  []string{"src/widget.go", "docs/readme.md"},
		},
		Files:     fakeFiles{files: map[string]string{"Dockerfile": "FROM golang", "src/widget.go": "package widget // TODO"}},
		Providers: fakeProviders{has: map[string]bool{"docker/registry": true}},
		Goals:     fakeGoals{},
	}
}

func TestEvaluateHasFile(t *testing.T) {
	e := NewEvaluator(nil)
	ok, err := e.Evaluate(baseCtx(), &Test{Kind: KindHasFile, Path: "Dockerfile"})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}
	ok, err = e.Evaluate(baseCtx(), &Test{Kind: KindHasFile, Path: "missing"})
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want false/nil", ok, err)
	}
}

func TestEvaluateIsDefaultBranch(t *testing.T) {
	e := NewEvaluator(nil)
	ok, err := e.Evaluate(baseCtx(), &Test{Kind: KindIsDefaultBranch})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}
}

func TestEvaluateIsDefaultBranchAbsentNeverMatches(t *testing.T) {
	ctx := baseCtx()
	ctx.Push.DefaultBranch = ""
	e := NewEvaluator(nil)
	ok, err := e.Evaluate(ctx, &Test{Kind: KindIsDefaultBranch})
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want false/nil when default branch unknown", ok, err)
	}
}

func TestEvaluateAndShortCircuits(t *testing.T) {
	e := NewEvaluator(nil)
	tree := &Test{Kind: KindAnd, Subtests: []*Test{
		{Kind: KindIsBranch, Regex: "^main$"},
		{Kind: KindHasFile, Path: "Dockerfile"},
	}}
	ok, err := e.Evaluate(baseCtx(), tree)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}
}

func TestEvaluateNot(t *testing.T) {
	e := NewEvaluator(nil)
	tree := &Test{Kind: KindNot, Subtests: []*Test{{Kind: KindIsBranch, Regex: "^release$"}}}
	ok, err := e.Evaluate(baseCtx(), tree)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}
}

func TestEvaluateIsMaterialChange(t *testing.T) {
	e := NewEvaluator(nil)
	tree := &Test{Kind: KindIsMaterialChange, MaterialChange: &MaterialChangeSpec{Directories: []string{"src/"}}}
	ok, err := e.Evaluate(baseCtx(), tree)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}

	tree2 := &Test{Kind: KindIsMaterialChange, MaterialChange: &MaterialChangeSpec{Directories: []string{"infra/"}}}
	ok, err = e.Evaluate(baseCtx(), tree2)
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want false/nil", ok, err)
	}
}

func TestEvaluateHasFileContaining(t *testing.T) {
	e := NewEvaluator(nil)
	tree := &Test{Kind: KindHasFileContaining, FileContaining: &FileContainingSpec{
		Globs: []string{"src/*.go"}, ContentRegex: "TODO",
	}}
	ok, err := e.Evaluate(baseCtx(), tree)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}
}

func TestEvaluateHasCommit(t *testing.T) {
	e := NewEvaluator(nil)
	ok, err := e.Evaluate(baseCtx(), &Test{Kind: KindHasCommit, Regex: "^fix:"})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}
}

func TestEvaluateUseExtension(t *testing.T) {
	reg := NewRegistry()
	reg.Register("always-true", func(ctx Context) (bool, error) { return true, nil })
	e := NewEvaluator(reg)
	ok, err := e.Evaluate(baseCtx(), &Test{Kind: KindUse, Name: "always-true"})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}
}

func TestEvaluateUseExtensionUnregisteredErrors(t *testing.T) {
	e := NewEvaluator(nil)
	_, err := e.Evaluate(baseCtx(), &Test{Kind: KindUse, Name: "nope"})
	if err == nil {
		t.Fatal("expected error for unregistered extension")
	}
}

func TestEvaluateMalformedRegexErrorsNotFalse(t *testing.T) {
	e := NewEvaluator(nil)
	_, err := e.Evaluate(baseCtx(), &Test{Kind: KindIsBranch, Regex: "("})
	if err == nil {
		t.Fatal("malformed regex must surface as an error, not false")
	}
}

func TestEvaluateUnknownKindErrors(t *testing.T) {
	e := NewEvaluator(nil)
	_, err := e.Evaluate(baseCtx(), &Test{Kind: Kind("bogus")})
	if err == nil {
		t.Fatal("unknown kind must error")
	}
}
