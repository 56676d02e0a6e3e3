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

package pipeline

import (
	"net/url"
	"strings"

	"github.com/boorudev/ingestpipe/internal/sitehandler"
)

// buildSource assembles a newline-separated source string from
// (override, direct_url, page_url),
// suppressing duplicates under handler.NormalizeForComparison, falling
// back to host+path lowercased when the handler declines to offer a
// stricter key. The override may itself be multi-line; each of its
// lines is deduplicated independently.
func buildSource(override, directURL, pageURL string, handler sitehandler.Handler) string {
	candidates := append(splitNonEmptyLines(override), directURL, pageURL)

	seen := make(map[string]bool, len(candidates))
	var lines []string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		key := comparisonKey(c, handler)
		if seen[key] {
			continue
		}
		seen[key] = true
		lines = append(lines, c)
	}

	return strings.Join(lines, "\n")
}

func comparisonKey(raw string, handler sitehandler.Handler) string {
	if handler != nil {
		if key, ok := handler.NormalizeForComparison(raw); ok {
			return key
		}
	}

	return hostPathLower(raw)
}

// hostPathLower is the fallback dedup key: host+path, lowercased.
func hostPathLower(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	return strings.ToLower(u.Host + u.Path)
}
