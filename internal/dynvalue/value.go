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

// Package dynvalue models the heterogeneous metadata tree returned by
// extractor subprocesses: a single object, an array, or an array of
// [type, url, dict] triplets, with unknown keys passed through as a
// generic map. It exposes typed accessors for the keys the pipeline
// actually reads instead of forcing every caller to type-assert raw
// interface{} values.
package dynvalue

import (
	"encoding/json"
	"fmt"
)

// Value wraps one node of a decoded JSON document. The zero Value is
// null.
type Value struct {
	raw any
}

// Parse decodes data into a Value tree. data may be a JSON object, an
// array, or any scalar.
func Parse(data []byte) (Value, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, fmt.Errorf("dynvalue: parse: %w", err)
	}

	return Value{raw: v}, nil
}

// IsNull reports whether the value is JSON null or was never set.
func (v Value) IsNull() bool { return v.raw == nil }

// Map returns the value as a map, or ok=false if it is not an object.
func (v Value) Map() (map[string]Value, bool) {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]Value, len(m))
	for k, val := range m {
		out[k] = Value{raw: val}
	}

	return out, true
}

// Array returns the value as a slice, or ok=false if it is not an array.
func (v Value) Array() ([]Value, bool) {
	a, ok := v.raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Value, len(a))
	for i, val := range a {
		out[i] = Value{raw: val}
	}

	return out, true
}

// String returns the value as a string, or ok=false otherwise.
func (v Value) String() (string, bool) {
	s, ok := v.raw.(string)

	return s, ok
}

// Get looks up key in the value, assuming it is an object. It returns
// the zero Value and ok=false if the value is not an object or the key
// is absent.
func (v Value) Get(key string) (Value, bool) {
	m, ok := v.Map()
	if !ok {
		return Value{}, false
	}
	child, ok := m[key]

	return child, ok
}

// StringsUnder collects every string reachable from key, accepting a
// plain string, a list of strings, or a list of {name: ...} objects —
// the three shapes extractor tag metadata is observed to take.
func (v Value) StringsUnder(key string) []string {
	child, ok := v.Get(key)
	if !ok {
		return nil
	}

	return extractStrings(child)
}

func extractStrings(v Value) []string {
	if s, ok := v.String(); ok {
		return []string{s}
	}
	if arr, ok := v.Array(); ok {
		var out []string
		for _, item := range arr {
			if s, ok := item.String(); ok {
				out = append(out, s)

				continue
			}
			if name, ok := item.Get("name"); ok {
				if s, ok := name.String(); ok {
					out = append(out, s)
				}
			}
		}

		return out
	}

	return nil
}

// TagKeys returns every top-level key on an object value named "tags"
// or matching "tags_*", the set the pipeline unions during tag
// assembly.
func (v Value) TagKeys() []string {
	m, ok := v.Map()
	if !ok {
		return nil
	}
	var keys []string
	for k := range m {
		if k == "tags" || (len(k) > 5 && k[:5] == "tags_") {
			keys = append(keys, k)
		}
	}

	return keys
}

// FirstString returns the first non-empty string found under any of
// keys, used for the file_url | sample_url | url fallback chain.
func (v Value) FirstString(keys ...string) (string, bool) {
	for _, k := range keys {
		if child, ok := v.Get(k); ok {
			if s, ok := child.String(); ok && s != "" {
				return s, true
			}
		}
	}

	return "", false
}

// AsMap is a convenience for callers that want a plain
// map[string]interface{} to persist as a generic JSON blob, preserving
// unknown keys verbatim.
func (v Value) AsMap() map[string]any {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return map[string]any{}
	}

	return m
}

// Merge combines src into dst, with dst's keys winning on conflict.
// Used to merge multiple *.json sidecar files found next to a
// downloaded media file into one metadata document.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}

	return dst
}
