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

// Package telemetry sets up the core's OpenTelemetry tracer and wraps
// the named suspension points of §5: bus send, source-control call,
// K8s API call, log flush.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sdmcore/engine"

// Tracer returns the core's named tracer. Call sites use it directly
// rather than a package-level global, keeping the "no process-wide
// singleton" stance of §9 consistent across the ambient stack too.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Span names for the suspension points §5 calls out explicitly. There is
// no bus.query span: this core's Bus has no request/reply operation, only
// Publish/Subscribe, so nothing would ever open one.
const (
	SpanBusSend           = "bus.send"
	SpanSourceControlCall = "sourcecontrol.call"
	SpanK8sAPICall        = "k8s.call"
	SpanLogFlush          = "progresslog.flush"
)

// Wrap runs f inside a child span named name, recording f's error on
// the span before returning it.
func Wrap(ctx context.Context, name string, f func(ctx context.Context) error) error {
	ctx, span := Tracer().Start(ctx, name)
	defer span.End()
	if err := f(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
