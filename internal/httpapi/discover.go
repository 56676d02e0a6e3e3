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

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boorudev/ingestpipe/internal/booruclient"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
)

// defaultDiscoverLimit bounds a single /tag-jobs/discover call when the
// caller does not supply one.
const defaultDiscoverLimit = 100

// handleDiscover implements POST /tag-jobs/discover: it enumerates
// remote posts matching query and creates one tag_existing job per
// match, scoped to the caller's own Booru credentials.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: decode request: %w", err))

		return
	}
	if req.Query == "" {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: query is required"))

		return
	}
	if len(req.Tags) == 0 {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: tags to apply are required"))

		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultDiscoverLimit
	}

	userCfg, err := s.cfg.LoadUserConfig(r.Context(), caller.Owner)
	if err != nil {
		writeError(r.Context(), statusForError(err), w, err)

		return
	}
	creds := booruclient.Credentials{BaseURL: userCfg.BooruBaseURL, Username: userCfg.BooruUsername, Token: userCfg.BooruToken}

	posts, err := s.booru.SearchPostsByTags(r.Context(), creds, req.Query, limit)
	if err != nil {
		writeError(r.Context(), statusForError(err), w, err)

		return
	}

	jobIDs := make([]string, 0, len(posts))
	for _, post := range posts {
		postID := post.ID
		id, err := s.store.Create(r.Context(), jobstore.JobDraft{
			JobType:      ingestmodel.JobTypeTagExisting,
			InitialTags:  req.Tags,
			TargetPostID: &postID,
			Owner:        caller.Owner,
		})
		if err != nil {
			writeError(r.Context(), statusForError(err), w, err)

			return
		}
		jobIDs = append(jobIDs, id.String())
	}

	writeJSON(w, http.StatusOK, discoverResponse{JobsCreated: len(jobIDs), JobIDs: jobIDs})
}
