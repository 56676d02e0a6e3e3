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
	"fmt"
	"strings"

	"github.com/boorudev/ingestpipe/internal/booruclient"
	"github.com/boorudev/ingestpipe/internal/tagcache"
)

// RetagRequest bundles what RetagExisting needs for a tag_existing job.
// Unlike MediaRequest, there is no file to download or tagger to run:
// the post already exists on the Booru.
type RetagRequest struct {
	PostID       int64
	InitialTags  []string
	Creds        booruclient.Credentials
	CheckAborted StatusChecker
}

// RetagExisting applies a tag_existing job's initial tags to an
// already-uploaded post. It never invokes the AI tagger: booruclient's
// Post carries no content or image URL for a tagger to operate on, so
// tag_existing jobs are scoped to tag application only, not re-tagging.
// New tags merge into the post's existing tag list (union, no
// duplicates); tags already on the post are left untouched along with
// whatever category the Booru already assigned them.
func (p *Pipeline) RetagExisting(ctx context.Context, req RetagRequest) (Outcome, error) {
	if err := abortIfNeeded(ctx, req.CheckAborted); err != nil {
		return Outcome{}, err
	}

	post, err := p.booru.GetPost(ctx, req.Creds, req.PostID)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: retag: get post: %w", err)
	}

	seen := make(map[string]bool, len(post.Tags))
	for _, t := range post.Tags {
		seen[strings.ToLower(t)] = true
	}

	merged := append([]string{}, post.Tags...)
	var added []string
	categories := make(map[string]string)
	for _, raw := range req.InitialTags {
		name, category, hasCategory := splitCategoryPrefix(raw)
		name = normalizeTagName(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, name)
		added = append(added, name)
		if hasCategory {
			categories[name] = category
		} else {
			categories[name] = "general"
		}
	}

	if len(added) > 0 {
		pairs := make([]tagcache.Pair, 0, len(categories))
		for name, category := range categories {
			pairs = append(pairs, tagcache.Pair{Name: name, Category: category})
		}
		if err := p.tagCache.EnsureBatch(ctx, pairs); err != nil {
			return Outcome{}, fmt.Errorf("pipeline: retag: materialize tags: %w", err)
		}
	}

	if len(added) == 0 {
		return Outcome{
			PostID:      post.ID,
			Version:     post.Version,
			TagsApplied: merged,
		}, nil
	}

	if err := abortIfNeeded(ctx, req.CheckAborted); err != nil {
		return Outcome{}, err
	}

	updated, err := p.booru.UpdatePost(ctx, req.Creds, req.PostID, post.Version, booruclient.UpdatePostRequest{Tags: merged})
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: retag: update post: %w", err)
	}

	return Outcome{
		PostID:         updated.ID,
		Version:        updated.Version,
		TagsApplied:    merged,
		TagsFromSource: added,
	}, nil
}
