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

// Package bus provides the event-bus abstraction the core subscribes to
// and publishes on (§2, §6), realized over NATS.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/internal/telemetry"
)

// streamName is the single JetStream stream backing every category this
// package defines; "sdm.>" covers all of them under one retention policy.
const streamName = "SDM_CORE"

// Category names the four event categories of §2 plus the Job/JobTask
// events of §4.6, each bound to its own NATS subject.
type Category string

const (
	CategoryPushObserved   Category = "sdm.push.observed"
	CategoryGoalRequested  Category = "sdm.goal.requested"
	CategoryGoalSucceeded  Category = "sdm.goal.succeeded"
	CategoryGoalCompleted  Category = "sdm.goal.completed"
	CategoryJobTaskUpdated Category = "sdm.job.task.updated"
)

// Handler processes one delivered message. Returning an error signals the
// bus to redeliver per the retry policy of §7; returning nil, even when
// the underlying goal failed, tells the bus the event was processed.
type Handler func(ctx context.Context, payload []byte) error

// Bus is the minimal publish/subscribe contract the core needs. Tests use
// an in-memory fake; production wires natsBus.
type Bus interface {
	Publish(ctx context.Context, category Category, v any) error
	Subscribe(category Category, h Handler) (unsubscribe func() error, err error)
	Close() error
}

// natsBus implements Bus over a NATS connection, publishing and consuming
// through JetStream so a Handler error actually triggers redelivery (§7's
// propagation policy needs a real nack, not just a convention).
type natsBus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Connect dials url, enables JetStream, and ensures the stream backing
// every Category this package defines exists.
func Connect(url string) (Bus, error) {
	conn, err := nats.Connect(url, nats.Name("sdm-core"))
	if err != nil {
		return nil, sdmerrors.Wrap(sdmerrors.KindTransient, err, "bus: connecting to nats")
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, sdmerrors.Wrap(sdmerrors.KindTransient, err, "bus: enabling jetstream")
	}
	if _, err := js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"sdm.>"},
	}); err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		conn.Close()
		return nil, sdmerrors.Wrap(sdmerrors.KindTransient, err, "bus: creating stream")
	}
	return &natsBus{conn: conn, js: js}, nil
}

func (b *natsBus) Publish(ctx context.Context, category Category, v any) error {
	return telemetry.Wrap(ctx, telemetry.SpanBusSend, func(ctx context.Context) error {
		data, err := json.Marshal(v)
		if err != nil {
			return sdmerrors.Wrap(sdmerrors.KindValidation, err, "bus: marshaling payload")
		}
		if _, err := b.js.Publish(string(category), data); err != nil {
			return sdmerrors.Wrap(sdmerrors.KindTransient, err, "bus: publishing")
		}
		return nil
	})
}

// Subscribe creates (or rejoins) a durable JetStream consumer per category,
// one per process, acking a message on success, nacking it — so JetStream
// redelivers — when sdmerrors.Retryable(err) says the failure is transient,
// and terming it otherwise so a permanent failure is not retried forever.
func (b *natsBus) Subscribe(category Category, h Handler) (func() error, error) {
	durable := "sdm-" + strings.ReplaceAll(string(category), ".", "-")
	sub, err := b.js.Subscribe(string(category), func(msg *nats.Msg) {
		err := h(context.Background(), msg.Data)
		switch {
		case err == nil:
			_ = msg.Ack()
		case sdmerrors.Retryable(err):
			_ = msg.Nak()
		default:
			_ = msg.Term()
		}
	}, nats.Durable(durable), nats.ManualAck())
	if err != nil {
		return nil, sdmerrors.Wrap(sdmerrors.KindTransient, err, "bus: subscribing")
	}
	return sub.Unsubscribe, nil
}

func (b *natsBus) Close() error {
	b.conn.Close()
	return nil
}
