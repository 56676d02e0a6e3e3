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

package sitehandler

// Registry dispatches a URL to the first registered Handler that
// claims it, falling back to a generic handler (yt-dlp) when nothing
// matches.
type Registry struct {
	handlers []Handler
	fallback Handler
}

// NewRegistry returns an empty Registry. Register handlers in priority
// order: the first Matches wins.
func NewRegistry(fallback Handler) *Registry {
	return &Registry{fallback: fallback}
}

// Register appends h to the dispatch order.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
}

// Resolve returns the first handler whose Matches(url) is true, or the
// fallback handler if none claim it. The fallback is never nil by
// construction (NewRegistry requires one), so Resolve always succeeds.
func (r *Registry) Resolve(url string) Handler {
	for _, h := range r.handlers {
		if h.Matches(url) {
			return h
		}
	}

	return r.fallback
}

// IsFallback reports whether h is the registry's generic fallback
// handler rather than a specifically registered site handler. The
// job-creation URL validator uses this to tell a
// registered site (which must resolve to a specific post) from an
// unrecognized URL handed to the generic yt-dlp path (which has no such
// requirement).
func (r *Registry) IsFallback(h Handler) bool {
	return h.Name() == r.fallback.Name()
}
