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
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/open-policy-agent/opa/rego"
)

// opaInput is the input document a compiled policy evaluates against:
// the push itself, flattened from its exported fields, plus whatever
// preferences the context carries.
type opaInput struct {
	Push        Push              `json:"push"`
	Preferences map[string]string `json:"preferences"`
}

// NewOPAFactory compiles module once and returns a Factory a Registry
// can register under a name (conventionally "opa") for `use` nodes.
// query names the single boolean rule the module exports, e.g.
// "data.sdm.allow". The module is compiled eagerly so a malformed
// policy fails at registration, not on the first push it sees.
func NewOPAFactory(ctx context.Context, moduleName, module, query string) (Factory, error) {
	prepared, err := rego.New(
		rego.Query(query),
		rego.Module(moduleName, module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "push: compiling rego policy")
	}

	return func(evalCtx Context) (bool, error) {
		input, err := asOPAInput(evalCtx)
		if err != nil {
			return false, err
		}
		rs, err := prepared.Eval(context.Background(), rego.EvalInput(input))
		if err != nil {
			return false, errors.Wrap(err, "push: evaluating rego policy")
		}
		return opaDecision(rs)
	}, nil
}

func asOPAInput(evalCtx Context) (map[string]any, error) {
	raw, err := json.Marshal(opaInput{Push: evalCtx.Push, Preferences: evalCtx.Preferences})
	if err != nil {
		return nil, errors.Wrap(err, "push: marshaling rego input")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "push: decoding rego input")
	}
	return doc, nil
}

// opaDecision reduces a rego.ResultSet to the single boolean the query
// is expected to produce. Anything else — no results, a non-boolean
// expression, more than one expression — is a malformed policy, not a
// false verdict, so it surfaces as an error rather than silently
// failing the push test closed.
func opaDecision(rs rego.ResultSet) (bool, error) {
	if len(rs) != 1 || len(rs[0].Expressions) != 1 {
		return false, errors.New("push: rego query produced no single result")
	}
	ok, isBool := rs[0].Expressions[0].Value.(bool)
	if !isBool {
		return false, errors.New("push: rego query result is not a boolean")
	}
	return ok, nil
}
