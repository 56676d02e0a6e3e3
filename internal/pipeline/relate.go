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

	"github.com/boorudev/ingestpipe/internal/booruclient"
)

// MediaOutcome pairs an Outcome with the media index it came from, so
// LinkRelations can preserve enumeration order when choosing the
// primary post.
type MediaOutcome struct {
	Index   int
	Outcome Outcome
}

// RelationResult is what LinkRelations reports back to the worker for
// the job's szuru_post_id and related_post_ids fields.
type RelationResult struct {
	PrimaryPostID  int64
	RelatedPostIDs []int64
	WasMerge       bool
}

// LinkRelations links every successfully uploaded post in a job to its
// siblings. Index 0 stays the logical primary slot, but if media[0]
// failed or was skipped, the next *successful* media's post id is
// promoted to primary and every other successful id
// becomes a sibling relation. After choosing the primary, every
// successful post (primary included) is updated with the full set of
// siblings, excluding itself.
func (p *Pipeline) LinkRelations(ctx context.Context, creds booruclient.Credentials, outcomes []MediaOutcome) (RelationResult, error) {
	successful := make([]MediaOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.Outcome.Skipped && o.Outcome.PostID != 0 {
			successful = append(successful, o)
		}
	}

	if len(successful) == 0 {
		return RelationResult{}, nil
	}

	primary := successful[0]
	for _, o := range successful {
		if o.Index < primary.Index {
			primary = o
		}
	}

	if len(successful) == 1 {
		return RelationResult{PrimaryPostID: primary.Outcome.PostID, WasMerge: primary.Outcome.WasMerge}, nil
	}

	related := make([]int64, 0, len(successful)-1)
	for _, o := range successful {
		if o.Outcome.PostID != primary.Outcome.PostID {
			related = append(related, o.Outcome.PostID)
		}
	}

	for _, o := range successful {
		siblings := siblingsExcluding(successful, o.Outcome.PostID)
		if _, err := p.booru.UpdatePost(ctx, creds, o.Outcome.PostID, o.Outcome.Version, booruclient.UpdatePostRequest{
			Relations: siblings,
		}); err != nil {
			return RelationResult{}, fmt.Errorf("pipeline: link relations for post %d: %w", o.Outcome.PostID, err)
		}
	}

	return RelationResult{PrimaryPostID: primary.Outcome.PostID, RelatedPostIDs: related, WasMerge: primary.Outcome.WasMerge}, nil
}

func siblingsExcluding(all []MediaOutcome, exclude int64) []int64 {
	out := make([]int64, 0, len(all)-1)
	for _, o := range all {
		if o.Outcome.PostID != exclude {
			out = append(out, o.Outcome.PostID)
		}
	}

	return out
}
