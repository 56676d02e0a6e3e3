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
	"context"
	"fmt"
	"sort"
)

// tagImage runs a single inference pass and applies the ordering,
// thresholding, and cap rules for general and character tags.
func tagImage(ctx context.Context, model Model, path string, confidenceThreshold float64, maxTags int) (TagResult, error) {
	frame, err := model.TagFrame(ctx, path)
	if err != nil {
		return TagResult{}, fmt.Errorf("tagger: tag image: %w", err)
	}

	general := filterAndSort(frame.General, confidenceThreshold)
	if len(general) > maxTags {
		general = general[:maxTags]
	}

	character := filterAndSort(frame.Character, confidenceThreshold)

	return TagResult{
		GeneralTags:   cleanTags(labelsOf(general)),
		CharacterTags: cleanTags(labelsOf(character)),
		Safety:        safetyFromRating(frame.Rating),
	}, nil
}

// filterAndSort drops tags below threshold and returns the survivors
// in descending confidence order.
func filterAndSort(tags []ScoredTag, threshold float64) []ScoredTag {
	var kept []ScoredTag
	for _, t := range tags {
		if t.Confidence >= threshold {
			kept = append(kept, t)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Confidence > kept[j].Confidence })

	return kept
}

func labelsOf(tags []ScoredTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Label
	}

	return out
}
