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
	"sync"

	"github.com/google/uuid"

	"github.com/boorudev/ingestpipe/internal/workerengine"
)

// bulkWorkerCount bounds how many bulk control operations run at once;
// a single-job operation is a handful of store calls, so a small pool
// is enough to avoid saturating the connection pool on a large batch.
const bulkWorkerCount = 8

// Action names accepted by Bulk, matching the single-job operations.
const (
	ActionStart  = "start"
	ActionPause  = "pause"
	ActionStop   = "stop"
	ActionResume = "resume"
	ActionRetry  = "retry"
	ActionDelete = "delete"
)

type bulkJob struct {
	id     uuid.UUID
	action string
}

type bulkWorker struct {
	c *Controller
}

func (w bulkWorker) Work(ctx context.Context, _ int, wg *sync.WaitGroup, jobs <-chan bulkJob, errChan chan<- error) {
	defer wg.Done()

	for j := range jobs {
		if err := w.c.dispatch(ctx, j); err != nil {
			errChan <- fmt.Errorf("job %s: %w", j.id, err)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, j bulkJob) error {
	switch j.action {
	case ActionStart:
		return c.Start(ctx, j.id)
	case ActionPause:
		return c.Pause(ctx, j.id)
	case ActionStop:
		return c.Stop(ctx, j.id)
	case ActionResume:
		return c.Resume(ctx, j.id)
	case ActionRetry:
		return c.Retry(ctx, j.id)
	case ActionDelete:
		return c.Delete(ctx, j.id)
	default:
		return fmt.Errorf("controlplane: unknown bulk action %q", j.action)
	}
}

// Bulk is the 202-accepted bulk variant of the single-job operations:
// it enqueues action against every id onto a bounded background pool and
// returns immediately without waiting for any of them to finish. The
// caller observes per-job outcomes via the event stream, not via this
// call.
func (c *Controller) Bulk(action string, ids []uuid.UUID) {
	jobsChan := make(chan bulkJob, len(ids))
	for _, id := range ids {
		jobsChan <- bulkJob{id: id, action: action}
	}
	close(jobsChan)

	go func() {
		pool := workerengine.Pool[bulkJob]{}
		ctx := context.Background()
		for _, err := range pool.Start(ctx, jobsChan, bulkWorkerCount, bulkWorker{c: c}) {
			slog.ErrorContext(ctx, "controlplane: bulk action failed", "action", action, "error", err)
		}
	}()
}
