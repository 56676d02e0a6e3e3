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
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/boorudev/ingestpipe/internal/dynvalue"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/tagger"
)

// mustMarshalMetadata re-encodes the already-decoded metadata map so it
// can be walked through dynvalue's typed accessors. Metadata originates
// from json.Unmarshal in extractor, so re-marshaling it cannot fail.
func mustMarshalMetadata(metadata map[string]any) []byte {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return []byte("{}")
	}

	return raw
}

// origin records which assembly step first contributed a tag, purely
// for the job's audit fields (tags_from_source / tags_from_ai).
type origin string

const (
	originInitial origin = "initial"
	originSource  origin = "source"
	originAI      origin = "ai"
)

// tagmeSentinel is substituted when assembly produces no tags at all.
const tagmeSentinel = "tagme"

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".mkv": true, ".avi": true, ".gif": true,
}

func isVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".bmp":
		return true
	default:
		return false
	}
}

// assembledTags is a deduplicated, normalized tag list plus enough
// provenance to resolve categories and to populate the job's audit
// fields.
type assembledTags struct {
	Tags      []string
	origin    map[string]origin
	sourceKey map[string]string
	override  map[string]string
	character map[string]bool
	AISafety  *ingestmodel.Safety
}

// assembleTags merges initial tags, metadata-sourced tags, and AI
// tags into a single deduplicated list.
func (p *Pipeline) assembleTags(ctx context.Context, req MediaRequest, file string, metadata map[string]any) (assembledTags, error) {
	a := assembledTags{
		origin:    map[string]origin{},
		sourceKey: map[string]string{},
		override:  map[string]string{},
		character: map[string]bool{},
	}

	var ordered []string
	add := func(raw string, o origin, sourceKey string) {
		name, category, hasCategory := splitCategoryPrefix(raw)
		name = normalizeTagName(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, seen := a.origin[key]; seen {
			return
		}
		a.origin[key] = o
		if hasCategory {
			a.override[key] = category
		}
		if sourceKey != "" {
			a.sourceKey[key] = sourceKey
		}
		ordered = append(ordered, name)
	}

	for _, raw := range req.InitialTags {
		add(raw, originInitial, "")
	}

	meta, err := dynvalue.Parse(mustMarshalMetadata(metadata))
	if err == nil {
		for _, key := range meta.TagKeys() {
			for _, raw := range meta.StringsUnder(key) {
				add(raw, originSource, key)
			}
		}
	}

	video := isVideoFile(file)
	image := isImageFile(file)

	if video {
		add("video", originAI, "")
	}

	if !req.SkipTagging && req.GlobalCfg.WD14Enabled {
		switch {
		case image:
			result, err := p.tagger.TagImage(ctx, file)
			if err != nil {
				return assembledTags{}, fmt.Errorf("pipeline: tag image: %w", err)
			}
			a.applyAITags(result, add)
		case video:
			result, err := p.tagger.TagVideo(ctx, file, defaultSceneThreshold, defaultMaxFrames, defaultMinFrameRatio)
			if err != nil {
				return assembledTags{}, fmt.Errorf("pipeline: tag video: %w", err)
			}
			a.applyAITags(result, add)
		}
	}

	if len(ordered) == 0 {
		ordered = []string{tagmeSentinel}
	} else if len(ordered) > 1 {
		ordered = dropSentinelIfPresentAlongsideRealTags(ordered)
	}

	a.Tags = ordered

	return a, nil
}

// applyAITags folds a tagger.TagResult into the assembly, forcing every
// character tag's category to "character" and tracking the worst
// AI-derived safety across every tagger invocation for this media item.
func (a *assembledTags) applyAITags(result tagger.TagResult, add func(string, origin, string)) {
	for _, name := range result.GeneralTags {
		add(name, originAI, "")
	}
	for _, name := range result.CharacterTags {
		add(name, originAI, "")
		a.character[strings.ToLower(normalizeTagName(name))] = true
	}
	if a.AISafety == nil || safetyRank(result.Safety) > safetyRank(*a.AISafety) {
		safety := result.Safety
		a.AISafety = &safety
	}
}

// safetyRank orders ingestmodel.Safety from least to most restrictive,
// used to combine per-call AI safety signals (worst wins).
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

const (
	defaultSceneThreshold = 0.4
	defaultMaxFrames      = 8
	defaultMinFrameRatio  = 0.5
)

// splitCategoryPrefix separates a "category:name" tag into its parts.
// A prefix is only honored when both sides are non-empty.
func splitCategoryPrefix(raw string) (name, category string, hasCategory bool) {
	idx := strings.IndexByte(raw, ':')
	if idx <= 0 || idx == len(raw)-1 {
		return raw, "", false
	}

	return raw[idx+1:], strings.ToLower(raw[:idx]), true
}

// normalizeTagName trims whitespace and replaces internal whitespace
// with underscores.
func normalizeTagName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	return strings.Join(strings.Fields(name), "_")
}

// dropSentinelIfPresentAlongsideRealTags removes the literal "tagme"
// entry when real tags are also present.
func dropSentinelIfPresentAlongsideRealTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if strings.EqualFold(t, tagmeSentinel) {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return []string{tagmeSentinel}
	}

	return out
}

// resolveCategories resolves each tag's category in priority order:
// client override, then metadata source-key mapping, then the
// "general" default.
// Character tags from the AI tagger are always forced to "character".
func resolveCategories(a assembledTags, mapping ingestmodel.CategoryMapping) map[string]string {
	categories := make(map[string]string, len(a.Tags))
	for _, tag := range a.Tags {
		key := strings.ToLower(tag)
		switch {
		case a.character[key]:
			categories[tag] = "character"
		case a.override[key] != "":
			categories[tag] = a.override[key]
		default:
			if sourceKey, ok := a.sourceKey[key]; ok {
				if category, ok := mapping[sourceKey]; ok {
					categories[tag] = category

					continue
				}
			}
			categories[tag] = "general"
		}
	}

	return categories
}

// tagsByOrigin returns every tag whose recorded origin is one of wants,
// in assembly order.
func tagsByOrigin(a assembledTags, wants ...origin) []string {
	set := make(map[origin]bool, len(wants))
	for _, w := range wants {
		set[w] = true
	}

	var out []string
	for _, tag := range a.Tags {
		if set[a.origin[strings.ToLower(tag)]] {
			out = append(out, tag)
		}
	}

	return out
}
