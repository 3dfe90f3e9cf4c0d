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

// Package sign implements the canonical serialization and RSA-SHA512
// signing/verification of goal events (§4.3).
package sign

import (
	"strconv"
	"strings"

	"github.com/sdmcore/engine/pkg/goal"
)

// Canonical produces the exact line-structured serialization of e
// described in §4.3. Field order and the "undefined" sentinel for absent
// values are load-bearing: two callers computing Canonical over the same
// logical event must produce byte-identical output, or signatures won't
// verify across process boundaries.
func Canonical(e *goal.Event) string {
	var b strings.Builder
	line := func(k, v string) {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte('\n')
	}

	line("uniqueName", e.UniqueName)
	line("environment", e.Environment)
	line("goalSetId", e.GoalSetID)
	line("state", string(e.State))
	line("ts", strconv.FormatInt(e.Timestamp, 10))
	line("version", strconv.FormatInt(e.Version, 10))
	line("repo", e.Repo.String())
	line("sha", e.SHA)
	line("branch", e.Branch)
	line("fulfillment", e.Fulfillment.Name+"-"+string(e.Fulfillment.Method))
	line("preConditions", joinPreConditions(e.PreConditions))
	line("data", orUndefined(e.Data))
	line("url", orUndefined(e.URL))
	line("externalUrls", strings.Join(e.ExternalURLs, ","))
	line("provenance", joinProvenance(e.Provenance))
	line("retry", strconv.FormatBool(e.RetryFeasible))
	line("approvalRequired", strconv.FormatBool(e.ApprovalRequired))
	line("approval", provenanceOrUndefined(e.Approval))
	line("preApprovalRequired", strconv.FormatBool(e.PreApprovalRequired))
	line("preApproval", provenanceOrUndefined(e.PreApproval))

	// Trim the trailing newline: the canonical form is the concatenation
	// of lines separated by newlines, not terminated by one.
	return strings.TrimSuffix(b.String(), "\n")
}

func orUndefined(v string) string {
	if v == "" {
		return "undefined"
	}
	return v
}

func joinPreConditions(refs []goal.PreConditionRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.Environment + "/" + r.UniqueName
	}
	return strings.Join(parts, ",")
}

func formatProvenance(p goal.Provenance) string {
	return p.Registration + ":" + p.Version + "/" + p.Name + "-" + p.UserID + "-" + p.ChannelID + "-" + strconv.FormatInt(p.Timestamp, 10)
}

func joinProvenance(entries []goal.Provenance) string {
	parts := make([]string, len(entries))
	for i, p := range entries {
		parts[i] = formatProvenance(p)
	}
	return strings.Join(parts, ",")
}

func provenanceOrUndefined(p *goal.Provenance) string {
	if p == nil {
		return "undefined"
	}
	return formatProvenance(*p)
}
