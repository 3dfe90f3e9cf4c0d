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

// Package logging builds the core's base zap logger and bridges it to
// logr wherever a component wants that interface (§5's "replace
// automation-client singleton" design note: a logr.Logger is carried
// explicitly per call, not read off a process-wide handle).
package logging

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// New builds the base zap logger: JSON in production, console in dev.
func New(development bool, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	return cfg.Build()
}

// Line adapts a *zap.Logger to the minimal "Warn(msg, kv...)" surface
// the dispatcher, reactor, and state engine accept — keeping their
// interfaces decoupled from zap's own API.
type Line struct {
	Z *zap.SugaredLogger
}

func NewLine(z *zap.Logger) Line { return Line{Z: z.Sugar()} }

func (l Line) Warn(msg string, kv ...any) { l.Z.Warnw(msg, kv...) }
func (l Line) Info(msg string, kv ...any) { l.Z.Infow(msg, kv...) }

// WithContext attaches a logr.Logger to ctx, replacing the source's
// process-wide automation-client handle with an explicit value passed
// down the call chain from the entrypoint.
func WithContext(ctx context.Context, logger logr.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logr.Logger attached by WithContext, or a
// discard logger if none was attached — mirrors the teacher's
// controller-runtime `log.FromContext` idiom without the global
// registry it depends on.
func FromContext(ctx context.Context) logr.Logger {
	if l, ok := ctx.Value(ctxKey{}).(logr.Logger); ok {
		return l
	}
	return logr.Discard()
}

// Bridge wraps z as a logr.Logger via zapr, for components that expect
// the controller-runtime-style interface.
func Bridge(z *zap.Logger) logr.Logger {
	return zapr.NewLogger(z)
}
