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

// Package eventenvelope wraps job status-change payloads in a small,
// versioned envelope so the broker never has to be taught about a new
// message shape when a new event kind is added.
package eventenvelope

import (
	"encoding/json"
	"fmt"
)

// Event is implemented by every type publishable over the event bus.
type Event interface {
	Kind() string
	APIVersion() string
}

type envelope struct {
	Kind       string          `json:"kind"`
	APIVersion string          `json:"apiVersion"`
	Data       json.RawMessage `json:"data"`
}

// Wrap marshals payload into the standard envelope.
func Wrap[T Event](payload T) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("eventenvelope: marshal payload: %w", err)
	}

	return json.Marshal(envelope{Kind: payload.Kind(), APIVersion: payload.APIVersion(), Data: data})
}

// Peek extracts the kind and version without decoding the payload, so
// a router can dispatch before committing to a concrete type.
func Peek(raw []byte) (kind, apiVersion string, data json.RawMessage, err error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return env.Kind, env.APIVersion, env.Data, nil
}
