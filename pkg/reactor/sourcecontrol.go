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

package reactor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sdmcore/engine/internal/httpclient"
	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/internal/telemetry"
	"github.com/sdmcore/engine/pkg/push"
)

// SourceControlStatus implements StatusPublisher against a source-control
// provider's commit-status endpoint (§6, §4.8), PUT one JSON body per SHA.
// It owns its own gobreaker-wrapped HTTP client, a breaker instance
// separate from the progress log's remote sink.
type SourceControlStatus struct {
	Client       *httpclient.BreakerClient
	BaseURL      string
	Registration string
	Token        string
}

// NewSourceControlStatus builds a SourceControlStatus around a new
// breaker-wrapped client named "reactor-source-control-status".
func NewSourceControlStatus(client *http.Client, baseURL, registration, token string) *SourceControlStatus {
	return &SourceControlStatus{
		Client:       httpclient.New(client, "reactor-source-control-status"),
		BaseURL:      baseURL,
		Registration: registration,
		Token:        token,
	}
}

type statusBody struct {
	State       string `json:"state"`
	Context     string `json:"context"`
	Description string `json:"description"`
	TargetURL   string `json:"target_url,omitempty"`
}

// PublishStatus PUTs {context: "sdm/<registration>", state, description,
// target_url} to <baseURL>/<sha>, the shape §6 describes for the
// "commit status" external surface.
func (s *SourceControlStatus) PublishStatus(ctx context.Context, sha string, state ExternalStatus, description, targetURL string) error {
	body := statusBody{
		State:       string(state),
		Context:     fmt.Sprintf("sdm/%s", s.Registration),
		Description: description,
		TargetURL:   targetURL,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return sdmerrors.Wrap(sdmerrors.KindValidation, err, "reactor: encoding status body")
	}

	req, err := httpclient.WithContext(ctx, http.MethodPut, fmt.Sprintf("%s/%s", s.BaseURL, sha), bytes.NewReader(data))
	if err != nil {
		return sdmerrors.Wrap(sdmerrors.KindValidation, err, "reactor: building status request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	return telemetry.Wrap(ctx, telemetry.SpanSourceControlCall, func(ctx context.Context) error {
		if _, err := s.Client.Do(req); err != nil {
			return sdmerrors.Wrap(sdmerrors.KindTransient, err, "reactor: publishing source-control status")
		}
		return nil
	})
}

// PublishPending implements planner.StatusPublisher: the planner calls
// this once per non-empty plan, before any goal has run, so it always
// maps to the pending status.
func (s *SourceControlStatus) PublishPending(_ push.Context, sha, description string) error {
	return s.PublishStatus(context.Background(), sha, StatusPending, description, "")
}
