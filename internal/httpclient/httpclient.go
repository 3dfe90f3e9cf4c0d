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

// Package httpclient is the shared gobreaker-wrapped HTTP client for
// every flaky external HTTP collaborator the core calls: the progress
// log's remote sink and the goal-completion reactor's source-control
// status endpoint (§4.7, §4.8) both go through one of these.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sdmcore/engine/internal/sdmerrors"
)

// BreakerClient wraps an *http.Client with a circuit breaker so a flaky
// collaborator degrades (open breaker, fast failure) instead of
// blocking goal execution.
type BreakerClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New builds a BreakerClient. name identifies the breaker in metrics
// and logs (distinct instances for the progress log and the
// source-control status endpoint, so one flaky collaborator's breaker
// tripping does not mask the other's health).
func New(client *http.Client, name string) *BreakerClient {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 3 },
	}
	return &BreakerClient{client: client, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// errStatus wraps a non-2xx HTTP response so breaker.Execute sees it as
// a failure worth counting toward ReadyToTrip.
type errStatus int

func (e errStatus) Error() string { return "httpclient: non-2xx response" }

// Do runs req through the circuit breaker, returning the response body
// (already read and the response closed) on a 2xx status.
func (c *BreakerClient) Do(req *http.Request) ([]byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, errStatus(resp.StatusCode)
		}
		return body, nil
	})
	if err != nil {
		return nil, sdmerrors.Wrap(sdmerrors.KindTransient, err, "httpclient: request failed")
	}
	body, _ := result.([]byte)
	return body, nil
}

// WithContext is a convenience for building a request bound to ctx.
func WithContext(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, url, body)
}
