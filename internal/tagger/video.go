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
	"math"
	"sort"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

// FrameExtractor pulls representative frames from a video file. It
// returns the set of extracted frame file paths and a cleanup func
// that must be called on every exit path to remove the temp frame
// directory.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, sceneThreshold float64, maxFrames int) (frames []string, cleanup func(), err error)
}

type videoOptions struct {
	SceneThreshold float64
	MaxFrames      int
	MinFrameRatio  float64
}

func tagVideo(
	ctx context.Context,
	model Model,
	extractor FrameExtractor,
	path string,
	opts videoOptions,
	confidenceThreshold float64,
	maxTags int,
) (TagResult, error) {
	frames, cleanup, err := extractor.ExtractFrames(ctx, path, opts.SceneThreshold, opts.MaxFrames)
	defer func() {
		if cleanup != nil {
			cleanup()
		}
	}()
	if err != nil {
		return TagResult{}, fmt.Errorf("tagger: extract frames: %w", err)
	}
	if len(frames) == 0 {
		return TagResult{}, fmt.Errorf("tagger: no frames extracted from %s", path)
	}

	generalCounts := map[string]int{}
	characterSeen := map[string]bool{}
	worstSafety := ingestmodel.SafetySafe

	for _, framePath := range frames {
		frame, err := model.TagFrame(ctx, framePath)
		if err != nil {
			return TagResult{}, fmt.Errorf("tagger: tag frame %s: %w", framePath, err)
		}

		for _, t := range filterAndSort(frame.General, confidenceThreshold) {
			if tag, ok := cleanTag(t.Label); ok {
				generalCounts[tag]++
			}
		}
		for _, t := range filterAndSort(frame.Character, confidenceThreshold) {
			if tag, ok := cleanTag(t.Label); ok {
				characterSeen[tag] = true
			}
		}

		if safetyRank(safetyFromRating(frame.Rating)) > safetyRank(worstSafety) {
			worstSafety = safetyFromRating(frame.Rating)
		}
	}

	keepThreshold := int(math.Ceil(float64(len(frames)) * opts.MinFrameRatio))
	general := keptAtLeast(generalCounts, keepThreshold)
	if len(general) > maxTags {
		general = general[:maxTags]
	}

	character := make([]string, 0, len(characterSeen))
	for tag := range characterSeen {
		character = append(character, tag)
	}
	sort.Strings(character)

	return TagResult{
		GeneralTags:   general,
		CharacterTags: character,
		Safety:        worstSafety,
	}, nil
}

// keptAtLeast returns every key whose count meets threshold, sorted by
// descending count with alphabetical tie-break.
func keptAtLeast(counts map[string]int, threshold int) []string {
	var kept []string
	for tag, n := range counts {
		if n >= threshold {
			kept = append(kept, tag)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if counts[kept[i]] == counts[kept[j]] {
			return kept[i] < kept[j]
		}

		return counts[kept[i]] > counts[kept[j]]
	})

	return kept
}

func safetyRank(s ingestmodel.Safety) int {
	switch s {
	case ingestmodel.SafetyUnsafe:
		return 2
	case ingestmodel.SafetySketchy:
		return 1
	default:
		return 0
	}
}
