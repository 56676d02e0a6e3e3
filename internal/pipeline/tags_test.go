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
	"testing"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/tagger"
)

type fakeTagger struct {
	image tagger.TagResult
	video tagger.TagResult
}

func (f fakeTagger) TagImage(context.Context, string) (tagger.TagResult, error) { return f.image, nil }
func (f fakeTagger) TagVideo(context.Context, string, float64, int, float64) (tagger.TagResult, error) {
	return f.video, nil
}

func TestAssembleTagsDedupesCaseInsensitiveFirstOccurrenceWins(t *testing.T) {
	p := &Pipeline{tagger: fakeTagger{}}
	req := MediaRequest{
		InitialTags: []string{"Foo", "foo", "artist:bar"},
		GlobalCfg:   ingestmodel.GlobalConfig{},
		SkipTagging: true,
	}

	a, err := p.assembleTags(context.Background(), req, "image.jpg", nil)
	if err != nil {
		t.Fatalf("assembleTags: %v", err)
	}
	if len(a.Tags) != 2 {
		t.Fatalf("Tags = %v, want 2 entries", a.Tags)
	}
	if a.override["bar"] != "artist" {
		t.Errorf("override[bar] = %q, want artist", a.override["bar"])
	}
}

func TestAssembleTagsSubstitutesTagmeWhenEmpty(t *testing.T) {
	p := &Pipeline{tagger: fakeTagger{}}
	req := MediaRequest{SkipTagging: true}

	a, err := p.assembleTags(context.Background(), req, "image.jpg", nil)
	if err != nil {
		t.Fatalf("assembleTags: %v", err)
	}
	if len(a.Tags) != 1 || a.Tags[0] != tagmeSentinel {
		t.Errorf("Tags = %v, want [tagme]", a.Tags)
	}
}

func TestAssembleTagsDropsTagmeAlongsideRealTags(t *testing.T) {
	p := &Pipeline{tagger: fakeTagger{}}
	req := MediaRequest{InitialTags: []string{"tagme", "real_tag"}, SkipTagging: true}

	a, err := p.assembleTags(context.Background(), req, "image.jpg", nil)
	if err != nil {
		t.Fatalf("assembleTags: %v", err)
	}
	if len(a.Tags) != 1 || a.Tags[0] != "real_tag" {
		t.Errorf("Tags = %v, want [real_tag]", a.Tags)
	}
}

func TestAssembleTagsUnionsMetadataTagKeys(t *testing.T) {
	p := &Pipeline{tagger: fakeTagger{}}
	req := MediaRequest{SkipTagging: true}
	metadata := map[string]any{
		"tags_artist": []any{"some_artist"},
		"tags":        "loose string tag",
	}

	a, err := p.assembleTags(context.Background(), req, "image.jpg", metadata)
	if err != nil {
		t.Fatalf("assembleTags: %v", err)
	}
	if len(a.Tags) != 2 {
		t.Fatalf("Tags = %v, want 2 entries", a.Tags)
	}
	if a.sourceKey["some_artist"] != "tags_artist" {
		t.Errorf("sourceKey[some_artist] = %q, want tags_artist", a.sourceKey["some_artist"])
	}
}

func TestAssembleTagsAppliesWD14AndForcesCharacterCategory(t *testing.T) {
	p := &Pipeline{tagger: fakeTagger{
		image: tagger.TagResult{
			GeneralTags:   []string{"outdoors"},
			CharacterTags: []string{"hatsune_miku"},
			Safety:        ingestmodel.SafetySketchy,
		},
	}}
	req := MediaRequest{
		GlobalCfg: ingestmodel.GlobalConfig{WD14Enabled: true},
	}

	a, err := p.assembleTags(context.Background(), req, "image.jpg", nil)
	if err != nil {
		t.Fatalf("assembleTags: %v", err)
	}

	categories := resolveCategories(a, nil)
	if categories["hatsune_miku"] != "character" {
		t.Errorf("hatsune_miku category = %q, want character", categories["hatsune_miku"])
	}
	if categories["outdoors"] != "general" {
		t.Errorf("outdoors category = %q, want general", categories["outdoors"])
	}
	if a.AISafety == nil || *a.AISafety != ingestmodel.SafetySketchy {
		t.Errorf("AISafety = %v, want sketchy", a.AISafety)
	}
}

func TestAssembleTagsAppendsLiteralVideoTag(t *testing.T) {
	p := &Pipeline{tagger: fakeTagger{}}
	req := MediaRequest{SkipTagging: true}

	a, err := p.assembleTags(context.Background(), req, "clip.mp4", nil)
	if err != nil {
		t.Fatalf("assembleTags: %v", err)
	}
	found := false
	for _, tag := range a.Tags {
		if tag == "video" {
			found = true
		}
	}
	if !found {
		t.Errorf("Tags = %v, want to contain literal video tag", a.Tags)
	}
}

func TestResolveCategoriesUsesSourceKeyMapping(t *testing.T) {
	p := &Pipeline{tagger: fakeTagger{}}
	req := MediaRequest{SkipTagging: true}
	metadata := map[string]any{"tags_artist": []any{"some_artist"}}

	a, err := p.assembleTags(context.Background(), req, "image.jpg", metadata)
	if err != nil {
		t.Fatalf("assembleTags: %v", err)
	}

	mapping := ingestmodel.CategoryMapping{"tags_artist": "artist"}
	categories := resolveCategories(a, mapping)
	if categories["some_artist"] != "artist" {
		t.Errorf("category = %q, want artist", categories["some_artist"])
	}
}
