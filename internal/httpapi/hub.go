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

package httpapi

import (
	"context"
	"sync"

	"github.com/boorudev/ingestpipe/internal/eventbus"
	"github.com/boorudev/ingestpipe/internal/eventenvelope"
)

// clientBuffer bounds how many undelivered events a slow SSE client
// may accumulate before new ones are dropped for it; the bus itself is
// stateless, so a dropped event is no worse than a late
// subscriber missing it.
const clientBuffer = 16

// hub fans JobUpdated events out to every connected SSE client. One
// hub is shared by the whole process; Run subscribes it to the event
// bus for the life of the server.
type hub struct {
	mu      sync.Mutex
	clients map[chan eventbus.JobUpdated]struct{}
}

// newHub returns an empty hub.
func newHub() *hub {
	return &hub{clients: make(map[chan eventbus.JobUpdated]struct{})}
}

// subscribe registers a new client channel. The caller must call the
// returned cancel func when the client disconnects.
func (h *hub) subscribe() (<-chan eventbus.JobUpdated, func()) {
	ch := make(chan eventbus.JobUpdated, clientBuffer)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		close(ch)
		h.mu.Unlock()
	}
}

// broadcast fans payload out to every connected client, dropping it
// for any client whose buffer is already full rather than blocking the
// whole hub on one slow reader.
func (h *hub) broadcast(payload eventbus.JobUpdated) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Run subscribes the hub to bus and blocks until ctx is canceled or the
// underlying connection drops, mirroring internal/workerengine's
// run-until-done goroutines.
func (h *hub) Run(ctx context.Context, bus *eventbus.Bus) error {
	router := eventenvelope.NewRouter()
	eventenvelope.Register(router, func(_ context.Context, payload eventbus.JobUpdated) error {
		h.broadcast(payload)

		return nil
	})

	return bus.Subscribe(ctx, router)
}
