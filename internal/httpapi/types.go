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
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/boorudev/ingestpipe/internal/errtax"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
)

// errorFunc is a single choke point for writing a JSON error body.
type errorFunc func(ctx context.Context, statusCode int, w http.ResponseWriter, err error)

// basicError is the wire shape of every non-2xx response.
type basicError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeError writes statusCode and a JSON body carrying err's message.
// It does not classify err; callers that need a mapped status pass
// statusForError(err).
func writeError(ctx context.Context, statusCode int, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("httpapi: unknown error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encErr := json.NewEncoder(w).Encode(basicError{Code: statusCode, Message: err.Error()}); encErr != nil {
		slog.ErrorContext(ctx, "httpapi: failed to write error body", "error", encErr)
	}
}

// statusForError maps a pipeline/store error to an HTTP status using
// errtax's taxonomy, falling back to jobstore/ingestmodel sentinels and
// finally to 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, jobstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingestmodel.ErrInvalidTransition):
		return http.StatusConflict
	}

	switch errtax.Classify(err) {
	case errtax.ErrValidation:
		return http.StatusBadRequest
	case errtax.ErrDuplicateDetected:
		return http.StatusConflict
	case nil:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// jobDTO is the JSON rendering of ingestmodel.Job. Job itself carries
// no json tags (internal/jobstore and internal/controlplane only ever
// marshal it internally), so the wire shape is kept here, next to the
// rest of the external contract.
type jobDTO struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	JobType          string     `json:"job_type"`
	URL              string     `json:"url,omitempty"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	SourceOverride   string     `json:"source_override,omitempty"`
	InitialTags      []string   `json:"initial_tags,omitempty"`
	Safety           string     `json:"safety,omitempty"`
	SkipTagging      bool       `json:"skip_tagging"`
	Owner            string     `json:"owner"`
	TargetPostID     *int64     `json:"target_post_id,omitempty"`
	SzuruPostID      *int64     `json:"szuru_post_id,omitempty"`
	RelatedPostIDs   []int64    `json:"related_post_ids,omitempty"`
	WasMerge         bool       `json:"was_merge"`
	ErrorMessage     string     `json:"error,omitempty"`
	RetryCount       int        `json:"retry_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	TagsApplied      []string   `json:"tags_applied,omitempty"`
	TagsFromSource   []string   `json:"tags_from_source,omitempty"`
	TagsFromAI       []string   `json:"tags_from_ai,omitempty"`
}

func toJobDTO(j ingestmodel.Job) jobDTO {
	return jobDTO{
		ID:               j.ID.String(),
		Status:           string(j.Status),
		JobType:          string(j.JobType),
		URL:              j.URL,
		OriginalFilename: j.OriginalFilename,
		SourceOverride:   j.SourceOverride,
		InitialTags:      j.InitialTags,
		Safety:           string(j.Safety),
		SkipTagging:      j.SkipTagging,
		Owner:            j.Owner,
		TargetPostID:     j.TargetPostID,
		SzuruPostID:      j.SzuruPostID,
		RelatedPostIDs:   j.RelatedPostIDs,
		WasMerge:         j.WasMerge,
		ErrorMessage:     j.ErrorMessage,
		RetryCount:       j.RetryCount,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		TagsApplied:      j.TagsApplied,
		TagsFromSource:   j.TagsFromSource,
		TagsFromAI:       j.TagsFromAI,
	}
}

// createURLJobRequest is POST /jobs's body.
type createURLJobRequest struct {
	URL         string   `json:"url"`
	Source      string   `json:"source,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Safety      string   `json:"safety,omitempty"`
	SkipTagging bool     `json:"skip_tagging,omitempty"`
}

// listJobsResponse is GET /jobs's body.
type listJobsResponse struct {
	Jobs          []jobDTO `json:"jobs"`
	NextPageToken string   `json:"next_page_token,omitempty"`
	Total         int      `json:"total"`
}

// bulkJobsRequest is POST /jobs/bulk/{action}'s body.
type bulkJobsRequest struct {
	JobIDs []string `json:"job_ids"`
}

// bulkJobsResponse acknowledges a 202-accepted bulk request.
type bulkJobsResponse struct {
	Accepted int `json:"accepted"`
}

// discoverRequest is POST /tag-jobs/discover's body. Tags is what every
// created tag_existing job will apply to its matched post.
type discoverRequest struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags"`
	Limit int      `json:"limit,omitempty"`
}

// discoverResponse reports how many tag_existing jobs were created.
type discoverResponse struct {
	JobsCreated int      `json:"jobs_created"`
	JobIDs      []string `json:"job_ids"`
}
