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

package eventenvelope

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes one decoded payload of type T.
type Handler[T Event] func(ctx context.Context, payload T) error

// Router dispatches raw envelope bytes to a type-specific Handler based
// on (kind, apiVersion). Subscribers on the same topic can ignore kinds
// they don't understand rather than failing the whole delivery.
type Router struct {
	routes []route
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{}
}

type route interface {
	matches(kind, version string) bool
	dispatch(ctx context.Context, data json.RawMessage) error
}

type typedRoute[T Event] struct {
	kind, version string
	handler       Handler[T]
}

func (r *typedRoute[T]) matches(kind, version string) bool {
	return r.kind == kind && r.version == version
}

func (r *typedRoute[T]) dispatch(ctx context.Context, data json.RawMessage) error {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("eventenvelope: decode %T: %w", payload, err)
	}

	return r.handler(ctx, payload)
}

// Register adds a handler for T's (Kind, APIVersion). Panics on a
// duplicate registration for the same pair, since that always indicates
// a wiring bug rather than a runtime condition to recover from.
func Register[T Event](r *Router, handler Handler[T]) {
	var zero T
	kind, version := zero.Kind(), zero.APIVersion()

	for _, existing := range r.routes {
		if existing.matches(kind, version) {
			panic(fmt.Sprintf("eventenvelope: duplicate handler for kind=%q apiVersion=%q", kind, version))
		}
	}
	r.routes = append(r.routes, &typedRoute[T]{kind: kind, version: version, handler: handler})
}

// HandleMessage peeks raw's envelope and dispatches to the first
// matching route.
func (r *Router) HandleMessage(ctx context.Context, raw []byte) error {
	kind, version, data, err := Peek(raw)
	if err != nil {
		return err
	}
	for _, route := range r.routes {
		if route.matches(kind, version) {
			return route.dispatch(ctx, data)
		}
	}

	return fmt.Errorf("%w: kind=%q apiVersion=%q", ErrNoRoute, kind, version)
}
