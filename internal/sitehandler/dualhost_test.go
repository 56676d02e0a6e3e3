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

import "testing"

func TestDualHostNormalizeForComparison(t *testing.T) {
	h := NewDualHost("example.com", "legacy.example.com")

	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/posts/4821", "numeric:4821"},
		{"https://example.com/posts/4821?ref=search", "numeric:4821"},
		{"https://legacy.example.com/h/a1b2c3d4", "legacy:legacy.example.com/h/a1b2c3d4"},
		{"https://example.com/gallery/4821", "legacy:example.com/gallery/4821"},
	}

	for _, c := range cases {
		got, ok := h.NormalizeForComparison(c.url)
		if !ok {
			t.Errorf("NormalizeForComparison(%q): ok=false, want true", c.url)

			continue
		}
		if got != c.want {
			t.Errorf("NormalizeForComparison(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestDualHostDistinctKeysAcrossHostSpaces(t *testing.T) {
	h := NewDualHost("example.com", "legacy.example.com")

	numeric, _ := h.NormalizeForComparison("https://example.com/posts/4821")
	legacy, _ := h.NormalizeForComparison("https://legacy.example.com/h/4821")

	if numeric == legacy {
		t.Fatalf("expected distinct dedup keys across host spaces, both got %q", numeric)
	}
}

func TestDualHostMatchesBothHosts(t *testing.T) {
	h := NewDualHost("example.com", "legacy.example.com")

	if !h.Matches("https://example.com/posts/1") {
		t.Error("expected match on numeric host")
	}
	if !h.Matches("https://legacy.example.com/h/abc") {
		t.Error("expected match on legacy host")
	}
	if h.Matches("https://unrelated.com/posts/1") {
		t.Error("expected no match on unrelated host")
	}
}
