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
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/boorudev/ingestpipe/internal/booruclient"
)

type uploadRequest struct {
	Creds  booruclient.Credentials
	File   string
	Tags   []string
	Safety string
	Source string
}

// uploadOrMerge reverse-searches first; merges into an exact match if
// one exists, otherwise uploads fresh,
// treating a server-reported duplicate as a non-fatal skip.
func (p *Pipeline) uploadOrMerge(ctx context.Context, req uploadRequest) (Outcome, error) {
	logger := slog.With("file", req.File)

	result, err := p.booru.ReverseSearch(ctx, req.Creds, req.File)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: reverse search: %w", err)
	}

	if result.Exact != nil {
		return p.mergeIntoExisting(ctx, req, *result.Exact)
	}

	post, err := p.booru.Upload(ctx, req.Creds, req.File, req.Tags, req.Safety, req.Source)
	if err != nil {
		if errors.Is(err, booruclient.ErrDuplicateContent) {
			logger.InfoContext(ctx, "upload reported duplicate content, skipping media")

			return Outcome{Skipped: true, SkipReason: "duplicate content"}, nil
		}

		return Outcome{}, fmt.Errorf("pipeline: upload: %w", err)
	}

	return Outcome{PostID: post.ID, Version: post.Version}, nil
}

// mergeIntoExisting unions tags and sources into the post reverse-search
// already found, skipping the update entirely when nothing changes.
func (p *Pipeline) mergeIntoExisting(ctx context.Context, req uploadRequest, existing booruclient.Post) (Outcome, error) {
	current, err := p.booru.GetPost(ctx, req.Creds, existing.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: get post for merge: %w", err)
	}

	mergedTags, tagsChanged := unionTagsCaseInsensitive(current.Tags, req.Tags)
	mergedSource, sourceChanged := unionSourceLines(current.Source, req.Source)

	if !tagsChanged && !sourceChanged {
		return Outcome{PostID: current.ID, Version: current.Version, WasMerge: true}, nil
	}

	update := booruclient.UpdatePostRequest{}
	if tagsChanged {
		update.Tags = mergedTags
	}
	if sourceChanged {
		update.Source = &mergedSource
	}

	updated, err := p.booru.UpdatePost(ctx, req.Creds, current.ID, current.Version, update)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: merge update: %w", err)
	}

	return Outcome{PostID: updated.ID, Version: updated.Version, WasMerge: true}, nil
}

// unionTagsCaseInsensitive merges new into existing, case-insensitively
// deduplicated, preserving existing's order and appending new entries.
func unionTagsCaseInsensitive(existing, add []string) ([]string, bool) {
	seen := make(map[string]bool, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, t := range existing {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}

	changed := false
	for _, t := range add {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		changed = true
	}

	return out, changed
}

// unionSourceLines appends any newline-delimited source lines from add
// that existing does not already contain, deduped by a lowercased exact
// match (the pipeline's own normalize_for_comparison dedup already ran
// when add was built).
func unionSourceLines(existing, add string) (string, bool) {
	existingLines := splitNonEmptyLines(existing)
	seen := make(map[string]bool, len(existingLines))
	for _, l := range existingLines {
		seen[strings.ToLower(l)] = true
	}

	changed := false
	out := existingLines
	for _, l := range splitNonEmptyLines(add) {
		key := strings.ToLower(l)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
		changed = true
	}

	return strings.Join(out, "\n"), changed
}

func splitNonEmptyLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l != "" {
			out = append(out, l)
		}
	}

	return out
}
