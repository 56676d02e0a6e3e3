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

package workerengine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
)

// defaultMaxRetries is used when GlobalConfig.MaxRetries hasn't loaded
// (e.g. the config load itself is what failed).
const defaultMaxRetries = 3

// applyRetryPolicy increments retry_count, and if it's still within
// budget, requeues the job to
// pending either immediately or after retry_delay; otherwise leave it
// failed as a terminal state.
func (e *Engine) applyRetryPolicy(ctx context.Context, job *ingestmodel.Job, globalCfg ingestmodel.GlobalConfig, procErr error) {
	maxRetries := globalCfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	nextCount := job.RetryCount + 1
	errMsg := ingestmodel.TruncateError(procErr.Error())
	failed := ingestmodel.StatusFailed

	slog.WarnContext(ctx, "workerengine: job failed", "job_id", job.ID, "retry_count", nextCount, "max_retries", maxRetries, "error", procErr)

	if err := e.store.Update(ctx, job.ID, jobstore.Mutations{
		Status:       &failed,
		ErrorMessage: &errMsg,
		RetryCount:   &nextCount,
	}); err != nil {
		slog.ErrorContext(ctx, "workerengine: update failed job", "job_id", job.ID, "error", err)

		return
	}
	job.Status = failed
	job.ErrorMessage = errMsg
	job.RetryCount = nextCount

	exhausted := nextCount > maxRetries
	e.publish(ctx, *job, failed, nil, &exhausted)

	if exhausted {
		return
	}

	if globalCfg.RetryDelay <= 0 {
		e.requeue(ctx, job.ID, nextCount)

		return
	}

	jobID := job.ID
	delay := globalCfg.RetryDelay
	go func() {
		// A scheduled requeue must survive the worker's own context
		// (which may be canceled by shutdown well before retry_delay
		// elapses), so it runs against a fresh background context.
		sleepOrDone(context.Background(), delay)
		e.requeue(context.Background(), jobID, nextCount)
	}()
}

// requeue transitions a job back to pending if, and only if, it is
// still failed with the retry count this caller expects — a
// re-validation check equivalent to internal/jobstore's unexported
// retryReady predicate, reimplemented here since workerengine cannot
// call it directly.
func (e *Engine) requeue(ctx context.Context, id uuid.UUID, expectedRetryCount int) {
	current, err := e.store.Get(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "workerengine: requeue lookup failed", "job_id", id, "error", err)

		return
	}
	if current.Status != ingestmodel.StatusFailed || current.RetryCount != expectedRetryCount {
		return
	}

	pending := ingestmodel.StatusPending
	if err := e.store.Update(ctx, id, jobstore.Mutations{Status: &pending}); err != nil {
		slog.ErrorContext(ctx, "workerengine: requeue update failed", "job_id", id, "error", err)

		return
	}

	current.Status = pending
	e.publish(ctx, *current, pending, nil, nil)
}
