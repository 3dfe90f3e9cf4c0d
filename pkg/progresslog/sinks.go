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

package progresslog

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/sdmcore/engine/internal/httpclient"
	"github.com/sdmcore/engine/internal/telemetry"
)

// EphemeralSink is the always-on, in-memory/stdout sink of §4.7. It never
// falls back to anything else — it IS the fallback floor.
type EphemeralSink struct {
	mu  sync.Mutex
	out io.Writer
	buf bytes.Buffer
}

func NewEphemeralSink(out io.Writer) *EphemeralSink {
	return &EphemeralSink{out: out}
}

func (s *EphemeralSink) Write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.WriteString(line)
	s.buf.WriteByte('\n')
	return nil
}

func (s *EphemeralSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() == 0 {
		return nil
	}
	_, err := s.out.Write(s.buf.Bytes())
	s.buf.Reset()
	return err
}

func (s *EphemeralSink) Close() error { return s.Flush() }

// LocalSink routes lines to the ambient zap logger — the fallback when
// no remote log service is reachable.
type LocalSink struct {
	logger *zap.Logger
	goal   string
}

func NewLocalSink(logger *zap.Logger, goalRef string) *LocalSink {
	return &LocalSink{logger: logger, goal: goalRef}
}

func (s *LocalSink) Write(line string) error {
	s.logger.Info(line, zap.String("goal", s.goal))
	return nil
}

func (s *LocalSink) Flush() error { return nil }
func (s *LocalSink) Close() error { return nil }

// RemoteSink posts buffered lines to a remote log service over HTTP,
// guarded by a gobreaker circuit breaker (§4.7 "remote log service").
// When the breaker is open, or a post fails, it falls back to a local
// sink rather than blocking goal execution on a flaky collaborator.
type RemoteSink struct {
	client   *httpclient.BreakerClient
	url      string
	fallback Sink

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewRemoteSink builds a RemoteSink posting batched lines to url. fallback
// receives a batch only when building or posting the request fails
// (including an open circuit), so such a batch still reaches a local sink.
func NewRemoteSink(client *http.Client, url string, fallback Sink) *RemoteSink {
	return &RemoteSink{
		client:   httpclient.New(client, "progresslog-remote"),
		url:      url,
		fallback: fallback,
	}
}

func (s *RemoteSink) Write(line string) error {
	s.mu.Lock()
	s.buf.WriteString(line)
	s.buf.WriteByte('\n')
	s.mu.Unlock()
	return nil
}

func (s *RemoteSink) Flush() error {
	s.mu.Lock()
	batch := s.buf.String()
	s.buf.Reset()
	s.mu.Unlock()
	if batch == "" {
		return nil
	}

	return telemetry.Wrap(context.Background(), telemetry.SpanLogFlush, func(ctx context.Context) error {
		req, err := httpclient.WithContext(ctx, http.MethodPost, s.url, bytes.NewBufferString(batch))
		if err != nil {
			if s.fallback != nil {
				_ = s.fallback.Write(batch)
				return s.fallback.Flush()
			}
			return err
		}
		req.Header.Set("Content-Type", "text/plain")
		_, err = s.client.Do(req)
		if err != nil {
			if s.fallback != nil {
				_ = s.fallback.Write(batch)
				return s.fallback.Flush()
			}
			return err
		}
		return nil
	})
}

func (s *RemoteSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.fallback != nil {
		return s.fallback.Close()
	}
	return nil
}
