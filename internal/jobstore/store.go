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

// Package jobstore is the durable queue and job record store backing
// the engine. It is backed by Postgres; claim_next uses
// a `FOR UPDATE SKIP LOCKED` read so that N workers polling
// concurrently achieve N-way throughput with no head-of-line blocking.
package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

// ErrNotFound indicates the requested job id does not exist.
var ErrNotFound = errors.New("jobstore: job not found")

// JobDraft is the set of fields accepted at job creation.
type JobDraft struct {
	JobType          ingestmodel.JobType
	URL              string
	OriginalFilename string
	SourceOverride   string
	InitialTags      []string
	Safety           ingestmodel.Safety
	SkipTagging      bool
	Owner            string
	TargetPostID     *int64
}

// Mutations is a partial update applied by Update. Nil/zero fields are
// left unchanged except where a pointer is supplied.
type Mutations struct {
	Status         *ingestmodel.Status
	SzuruPostID    *int64
	RelatedPostIDs []int64
	WasMerge       *bool
	ErrorMessage   *string
	RetryCount     *int
	TagsApplied    []string
	TagsFromSource []string
	TagsFromAI     []string
}

// Filter narrows List results.
type Filter struct {
	Owner        string
	Status       *ingestmodel.Status
	WasMerge     *bool
	PageSize     int
	PageToken    string
}

// Store is the durable job queue contract. The Postgres implementation
// lives in postgres.go.
type Store interface {
	Create(ctx context.Context, draft JobDraft) (uuid.UUID, error)
	ClaimNext(ctx context.Context, workerID string) (*ingestmodel.Job, error)
	Update(ctx context.Context, id uuid.UUID, mut Mutations) error
	ObserveStatus(ctx context.Context, id uuid.UUID) (ingestmodel.Status, error)
	Get(ctx context.Context, id uuid.UUID) (*ingestmodel.Job, error)
	List(ctx context.Context, filter Filter) ([]ingestmodel.Job, string, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// retryReady is the predicate the scheduled-requeue task evaluates
// before transitioning a job back to pending: it must still be failed
// with an unchanged retry count.
func retryReady(j *ingestmodel.Job, expectedRetryCount int) bool {
	return j.Status == ingestmodel.StatusFailed && j.RetryCount == expectedRetryCount
}

// defaultPageSize is used by List when Filter.PageSize is unset.
const defaultPageSize = 50

// clampPageSize bounds an incoming page-size request.
func clampPageSize(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	if n > 200 {
		return 200
	}

	return n
}

// now exists so tests can stub the clock; production code always uses
// time.Now.
var now = time.Now
