// Copyright 2026 The Booru Ingest Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package eventbus fans job-status change notifications out to every
// subscriber (the SSE layer in internal/httpapi, and any other
// in-process listener) over a Redis-compatible pub/sub channel.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/valkey-io/valkey-go"

	"github.com/boorudev/ingestpipe/internal/eventenvelope"
)

// topic is the single channel every job update is published on;
// subscribers filter by kind if they only care about a subset.
const topic = "booru:job_updates"

// maxDialElapsed bounds how long New retries a failed initial dial.
const maxDialElapsed = 25 * time.Second

// Bus is a thin wrapper over a valkey client scoped to one pub/sub
// topic.
type Bus struct {
	client valkey.Client
}

// New dials addr (host:port) with exponential backoff and returns a
// ready Bus.
func New(addr string) (*Bus, error) {
	dial := func() (valkey.Client, error) {
		return valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	}

	client, err := backoff.Retry(context.Background(), dial,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxDialElapsed),
	)
	if err != nil {
		return nil, fmt.Errorf("eventbus: dial %s: %w", addr, err)
	}

	return &Bus{client: client}, nil
}

// Close releases the underlying connection.
func (b *Bus) Close() {
	b.client.Close()
}

// Publish wraps payload in an envelope and publishes it to topic.
func Publish[T eventenvelope.Event](ctx context.Context, b *Bus, payload T) error {
	raw, err := eventenvelope.Wrap(payload)
	if err != nil {
		return fmt.Errorf("eventbus: publish: %w", err)
	}

	err = b.client.Do(ctx, b.client.B().Publish().Channel(topic).Message(string(raw)).Build()).Error()
	if err != nil {
		return fmt.Errorf("eventbus: publish: %w", err)
	}

	return nil
}

// Subscribe blocks, routing every message on topic through router,
// until ctx is canceled or the connection drops. Callers that need a
// live feed (the SSE handler) should run this in its own goroutine and
// reconnect on error.
func (b *Bus) Subscribe(ctx context.Context, router *eventenvelope.Router) error {
	err := b.client.Receive(ctx, b.client.B().Subscribe().Channel(topic).Build(), func(msg valkey.PubSubMessage) {
		if err := router.HandleMessage(ctx, []byte(msg.Message)); err != nil {
			slog.WarnContext(ctx, "eventbus: dropping undeliverable message", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("eventbus: subscribe: %w", err)
	}

	return nil
}
