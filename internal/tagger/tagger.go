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

// Package tagger runs WD14 image/video tagging behind a bounded worker
// pool so CPU-bound model inference never blocks the pipeline's
// control-flow scheduler.
package tagger

import (
	"context"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

// TagResult is what a single inference call (image or aggregated
// video) produces.
type TagResult struct {
	GeneralTags   []string
	CharacterTags []string
	Safety        ingestmodel.Safety
}

// Model is the inference backend. wd14.Model implements it; tests
// substitute a fake.
type Model interface {
	// TagFrame runs inference once over the image at path, returning
	// raw (label, confidence) pairs per category before cleaning,
	// thresholding, or capping is applied.
	TagFrame(ctx context.Context, path string) (FrameResult, error)
}

// FrameResult is one raw inference pass before any aggregation or
// cleaning rules are applied.
type FrameResult struct {
	General   []ScoredTag
	Character []ScoredTag
	Rating    string // one of "explicit", "questionable", "sensitive", "general"
}

// ScoredTag is a single raw model output.
type ScoredTag struct {
	Label      string
	Confidence float64
}
