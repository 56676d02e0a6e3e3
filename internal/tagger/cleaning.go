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

package tagger

import (
	"regexp"
	"strings"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

// trailingConfidence matches a parenthetical confidence suffix some
// WD14 label sets carry, e.g. "blue_hair (0.92)".
var trailingConfidence = regexp.MustCompile(`\s*\([0-9.]+\)\s*$`)

// cleanTag normalizes a raw model label: strips a trailing parenthetical
// confidence, collapses internal whitespace to underscores, and
// reports ok=false for single-character results, which are dropped.
func cleanTag(raw string) (string, bool) {
	s := trailingConfidence.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), "_")

	if len([]rune(s)) <= 1 {
		return "", false
	}

	return s, true
}

func cleanTags(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := cleanTag(r); ok {
			out = append(out, s)
		}
	}

	return out
}

// safetyFromRating maps a WD14 rating bucket to the three-level safety
// scale the rest of the engine uses.
func safetyFromRating(rating string) ingestmodel.Safety {
	switch rating {
	case "explicit":
		return ingestmodel.SafetyUnsafe
	case "questionable", "sensitive":
		return ingestmodel.SafetySketchy
	default:
		return ingestmodel.SafetySafe
	}
}
