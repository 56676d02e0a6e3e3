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

package eventbus

import (
	"time"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

// JobUpdated is published every time a job's status, error message, or
// post linkage changes. It carries enough of the job to
// let subscribers render state without a follow-up fetch, matching the
// SSE `job_update` payload shape exactly.
type JobUpdated struct {
	JobID            string             `json:"job_id"`
	Status           ingestmodel.Status `json:"status"`
	Progress         *int               `json:"progress,omitempty"`
	ErrorMessage     string             `json:"error,omitempty"`
	SzuruPostID      *int64             `json:"szuru_post_id,omitempty"`
	Tags             []string           `json:"tags,omitempty"`
	RetriesExhausted *bool              `json:"retries_exhausted,omitempty"`
	RetryCount       *int               `json:"retry_count,omitempty"`
	Owner            string             `json:"owner"`
	Timestamp        time.Time          `json:"timestamp"`
}

// Kind implements eventenvelope.Event.
func (JobUpdated) Kind() string { return "JobUpdated" }

// APIVersion implements eventenvelope.Event.
func (JobUpdated) APIVersion() string { return "v1" }
