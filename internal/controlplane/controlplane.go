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

// Package controlplane implements the external command surface over a
// job's state machine: pause, stop, resume, retry,
// delete, and their bulk, 202-accepted variants.
package controlplane

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/boorudev/ingestpipe/internal/eventbus"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
)

// Store is the subset of jobstore.Store the control plane drives.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*ingestmodel.Job, error)
	Update(ctx context.Context, id uuid.UUID, mut jobstore.Mutations) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Publisher is the subset of *eventbus.Bus the control plane drives. A
// method-based interface, same reasoning as internal/workerengine's
// Publisher: eventbus.Publish is a generic function over a concrete
// *eventbus.Bus and cannot be faked directly.
type Publisher interface {
	PublishJobUpdated(ctx context.Context, payload eventbus.JobUpdated) error
}

// GlobalConfigLoader is the subset of *config.Store the control plane
// needs: retry's "after retry_delay, if configured" behavior depends
// on the live global retry delay.
type GlobalConfigLoader interface {
	LoadGlobalConfig(ctx context.Context) (ingestmodel.GlobalConfig, error)
}

// Clock lets tests stub the wall clock; production always uses
// time.Now.
type Clock func() time.Time

// Controller is the control plane. One instance is shared by every
// HTTP request handler.
type Controller struct {
	store       Store
	publisher   Publisher
	cfg         GlobalConfigLoader
	scratchRoot string
	now         Clock
	removeAll   func(string) error
}

// New returns a Controller. scratchRoot must match the value
// internal/workerengine.Engine was constructed with, since Delete
// removes a job's scratch directory by the same job_id convention.
func New(store Store, publisher Publisher, cfg GlobalConfigLoader, scratchRoot string) *Controller {
	return &Controller{
		store:       store,
		publisher:   publisher,
		cfg:         cfg,
		scratchRoot: scratchRoot,
		now:         time.Now,
		removeAll:   os.RemoveAll,
	}
}

// transition persists a status change and announces it, mirroring
// internal/workerengine's own transition-then-publish shape.
func (c *Controller) transition(ctx context.Context, job *ingestmodel.Job, status ingestmodel.Status) error {
	if err := c.store.Update(ctx, job.ID, jobstore.Mutations{Status: &status}); err != nil {
		return err
	}
	job.Status = status
	c.publish(ctx, *job, status)

	return nil
}

func (c *Controller) publish(ctx context.Context, job ingestmodel.Job, status ingestmodel.Status) {
	payload := eventbus.JobUpdated{
		JobID:     job.ID.String(),
		Status:    status,
		Owner:     job.Owner,
		Timestamp: c.now(),
	}
	if job.ErrorMessage != "" {
		payload.ErrorMessage = job.ErrorMessage
	}

	if err := c.publisher.PublishJobUpdated(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "controlplane: publish failed", "job_id", job.ID, "error", err)
	}
}

// sleepOrDone waits for either d to elapse or ctx to be canceled.
func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
