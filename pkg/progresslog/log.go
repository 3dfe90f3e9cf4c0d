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

// Package progresslog implements the buffered, multiplexed progress log
// pipeline of §4.7: an always-on ephemeral sink plus a persistent sink
// (remote log service, falling back to local logging).
package progresslog

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultFlushBytes = 1000
	defaultFlushEvery = 2 * time.Second
)

// Sink receives log lines and can be flushed and closed. Close must be
// safe to call more than once.
type Sink interface {
	Write(line string) error
	Flush() error
	Close() error
}

// Log is one invocation's logical progress log: every Write broadcasts to
// all configured sinks, a flush triggers on size or time, and Close is
// guaranteed on every exit path before the goal's terminal state is
// published (§4.7).
type Log struct {
	mu         sync.Mutex
	sinks      []Sink
	buffered   int
	flushBytes int
	flushTimer *time.Timer
	flushEvery time.Duration
	closed     bool
	logger     *zap.Logger
	url        string
}

// Option configures a Log at construction.
type Option func(*Log)

// WithFlushBytes overrides the default 1000-byte size trigger.
func WithFlushBytes(n int) Option { return func(l *Log) { l.flushBytes = n } }

// WithFlushEvery overrides the default 2s time trigger.
func WithFlushEvery(d time.Duration) Option { return func(l *Log) { l.flushEvery = d } }

// WithPublicURL records the log's externally-reachable URL, stored on the
// goal event so consumers can follow along (§4.7).
func WithPublicURL(url string) Option { return func(l *Log) { l.url = url } }

// New composes an always-on ephemeral sink with a persistent sink chosen
// by the caller as "first available of {remote, local}" — callers build
// that persistent Sink once (see NewRemoteSink and NewLocalSink) and pass it in here
// alongside the ephemeral one.
func New(logger *zap.Logger, sinks []Sink, opts ...Option) *Log {
	l := &Log{
		sinks:      sinks,
		flushBytes: defaultFlushBytes,
		flushEvery: defaultFlushEvery,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PublicURL returns the log's externally-reachable URL, if configured.
func (l *Log) PublicURL() string { return l.url }

// Write appends line to every sink and triggers a flush by size or time.
func (l *Log) Write(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	var firstErr error
	for _, s := range l.sinks {
		if err := s.Write(line); err != nil && firstErr == nil {
			firstErr = err
			l.logger.Warn("progresslog: sink write failed", zap.Error(err))
		}
	}
	l.buffered += len(line)
	if l.buffered >= l.flushBytes {
		l.flushLocked()
	} else {
		l.armTimer()
	}
	return firstErr
}

func (l *Log) armTimer() {
	if l.flushTimer != nil {
		return
	}
	l.flushTimer = time.AfterFunc(l.flushEvery, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.flushLocked()
	})
}

// flushLocked must be called with l.mu held.
func (l *Log) flushLocked() {
	for _, s := range l.sinks {
		if err := s.Flush(); err != nil {
			l.logger.Warn("progresslog: sink flush failed", zap.Error(err))
		}
	}
	l.buffered = 0
	if l.flushTimer != nil {
		l.flushTimer.Stop()
		l.flushTimer = nil
	}
}

// Close flushes and closes every sink exactly once. Safe to call
// multiple times — every exit path (success, failure, panic recovery)
// calls Close, and only the first call does any work.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.flushLocked()
	var firstErr error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
