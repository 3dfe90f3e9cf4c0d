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
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sdmcore/engine/internal/config"
	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/goal"
	"github.com/sdmcore/engine/pkg/planner"
	"github.com/sdmcore/engine/pkg/push"
)

// buildRules compiles the YAML-authored rule list into planner.Rules.
// Each rule's pushTest document is decoded through a yaml round-trip
// into push.Test's own tagged shape, rather than a bespoke map walker —
// the document already has the right nested structure, it just arrived
// as map[string]any because config.RuleConfig keeps the test payload
// opaque to the config package.
func buildRules(cfgRules []config.RuleConfig) ([]planner.Rule, error) {
	rules := make([]planner.Rule, 0, len(cfgRules))
	for _, rc := range cfgRules {
		test, err := decodeTest(rc.Test)
		if err != nil {
			return nil, sdmerrors.Wrap(sdmerrors.KindConfiguration, err, "sdmd: decoding rule "+rc.Name)
		}
		goals := make([]goal.Template, 0, len(rc.Goals))
		for _, g := range rc.Goals {
			goals = append(goals, goal.Template{
				UniqueName:          g.UniqueName,
				Environment:         g.Environment,
				Description:         g.Description,
				RetryFeasible:       g.RetryFeasible,
				ApprovalRequired:    g.ApprovalRequired,
				PreApprovalRequired: g.PreApprovalRequired,
				PreConditions:       decodePreConditions(g.PreConditions),
				Isolated:            g.Isolated,
				IsolationStrategy:   g.IsolationStrategy,
			})
		}
		rules = append(rules, planner.Rule{Name: rc.Name, Test: test, Goals: goals})
	}
	return rules, nil
}

func decodeTest(raw map[string]any) (*push.Test, error) {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var t push.Test
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// decodePreConditions splits each "environment/uniqueName" entry the
// same way Event.Key() and Template's own key() format their keys
// elsewhere in pkg/goal.
func decodePreConditions(raw []string) []goal.PreConditionRef {
	refs := make([]goal.PreConditionRef, 0, len(raw))
	for _, r := range raw {
		parts := strings.SplitN(r, "/", 2)
		if len(parts) != 2 {
			continue
		}
		refs = append(refs, goal.PreConditionRef{Environment: parts[0], UniqueName: parts[1]})
	}
	return refs
}
