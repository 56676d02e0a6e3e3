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
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// heartbeatInterval is how often a `:heartbeat` comment is sent to keep
// an idle SSE connection alive.
const heartbeatInterval = 30 * time.Second

// handleEvents implements GET /events: a Server-Sent Events stream of
// job_update frames, scoped to the caller's own jobs unless they are
// an admin.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(r.Context(), http.StatusInternalServerError, w, fmt.Errorf("httpapi: streaming unsupported"))

		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := s.hub.subscribe()
	defer cancel()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case payload, ok := <-events:
			if !ok {
				return
			}
			if !caller.Admin && payload.Owner != caller.Owner {
				continue
			}

			data, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: job_update\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
