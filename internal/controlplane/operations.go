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

package controlplane

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
)

// pausableFrom is the narrower source set for pause: unlike stop, a
// pending job was never running and has nothing to interrupt.
var pausableFrom = map[ingestmodel.Status]bool{
	ingestmodel.StatusDownloading: true,
	ingestmodel.StatusTagging:     true,
	ingestmodel.StatusUploading:   true,
}

// Start is a no-op beyond announcing the job's current state: the
// worker pool already polls for pending jobs on its own, so there is
// nothing to persist here. It exists so a caller has a
// single verb to "wake up" the pool after creating a job, rather than
// having to know that workers poll on a timer.
func (c *Controller) Start(ctx context.Context, id uuid.UUID) error {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("controlplane: start job %s: %w", id, err)
	}

	c.publish(ctx, *job, job.Status)

	return nil
}

// Pause is only valid from {downloading, tagging, uploading}.
func (c *Controller) Pause(ctx context.Context, id uuid.UUID) error {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("controlplane: pause job %s: %w", id, err)
	}
	if !pausableFrom[job.Status] {
		return fmt.Errorf("controlplane: pause job %s from %s: %w", id, job.Status, ingestmodel.ErrInvalidTransition)
	}

	return c.transition(ctx, job, ingestmodel.StatusPaused)
}

// Stop is valid from any non-terminal state.
func (c *Controller) Stop(ctx context.Context, id uuid.UUID) error {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("controlplane: stop job %s: %w", id, err)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("controlplane: stop job %s from %s: %w", id, job.Status, ingestmodel.ErrInvalidTransition)
	}

	return c.transition(ctx, job, ingestmodel.StatusStopped)
}

// Resume is valid only from {paused, stopped} and transitions to
// pending; a worker will reclaim it and reprocess from the beginning.
func (c *Controller) Resume(ctx context.Context, id uuid.UUID) error {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("controlplane: resume job %s: %w", id, err)
	}
	if job.Status != ingestmodel.StatusPaused && job.Status != ingestmodel.StatusStopped {
		return fmt.Errorf("controlplane: resume job %s from %s: %w", id, job.Status, ingestmodel.ErrInvalidTransition)
	}

	return c.transition(ctx, job, ingestmodel.StatusPending)
}

// Retry is valid only from failed: it clears error_message, resets
// retry_count to 0, and transitions to pending — immediately, or after
// the live global retry_delay if one is configured.
func (c *Controller) Retry(ctx context.Context, id uuid.UUID) error {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("controlplane: retry job %s: %w", id, err)
	}
	if job.Status != ingestmodel.StatusFailed {
		return fmt.Errorf("controlplane: retry job %s from %s: %w", id, job.Status, ingestmodel.ErrInvalidTransition)
	}

	zero, empty := 0, ""
	if err := c.store.Update(ctx, id, jobstore.Mutations{RetryCount: &zero, ErrorMessage: &empty}); err != nil {
		return fmt.Errorf("controlplane: retry job %s: %w", id, err)
	}
	job.RetryCount = 0
	job.ErrorMessage = ""

	globalCfg, err := c.cfg.LoadGlobalConfig(ctx)
	if err != nil {
		return fmt.Errorf("controlplane: retry job %s: load config: %w", id, err)
	}

	if globalCfg.RetryDelay <= 0 {
		return c.transition(ctx, job, ingestmodel.StatusPending)
	}

	c.scheduleResumeToPending(id, globalCfg.RetryDelay, 0)

	return nil
}

// scheduleResumeToPending re-validates before transitioning: the job
// must still be failed with the retry count this call expects,
// mirroring internal/jobstore's unexported retryReady predicate.
func (c *Controller) scheduleResumeToPending(id uuid.UUID, delay time.Duration, expectedRetryCount int) {
	go func() {
		sleepOrDone(context.Background(), delay)

		ctx := context.Background()
		current, err := c.store.Get(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "controlplane: scheduled retry lookup failed", "job_id", id, "error", err)

			return
		}
		if current.Status != ingestmodel.StatusFailed || current.RetryCount != expectedRetryCount {
			return
		}
		if err := c.transition(ctx, current, ingestmodel.StatusPending); err != nil {
			slog.ErrorContext(ctx, "controlplane: scheduled retry transition failed", "job_id", id, "error", err)
		}
	}()
}

// Delete removes the job record and its scratch directory
// unconditionally, regardless of status.
func (c *Controller) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("controlplane: delete job %s: %w", id, err)
	}

	scratchDir := filepath.Join(c.scratchRoot, id.String())
	if err := c.removeAll(scratchDir); err != nil {
		slog.WarnContext(ctx, "controlplane: scratch cleanup failed", "job_id", id, "error", err)
	}

	return nil
}
