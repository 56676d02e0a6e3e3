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

// Package workerengine runs the pool of long-running workers that
// claim, process, and retry jobs. Unlike a channel-fed worker pool,
// which feeds workers from a caller-supplied channel, every worker here
// is both producer and consumer: it polls internal/jobstore.ClaimNext
// itself, since nothing upstream hands it work to do.
package workerengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/boorudev/ingestpipe/internal/eventbus"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
	"github.com/boorudev/ingestpipe/internal/pipeline"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
)

// pollInterval is how long an idle worker sleeps before the next claim
// attempt.
const pollInterval = 2 * time.Second

// Enumerator is the subset of *extractor.Extractor the engine drives to
// list a URL job's media items.
type Enumerator interface {
	Enumerate(ctx context.Context, url string, handler sitehandler.Handler) ([]ingestmodel.ExtractedMedia, error)
}

// ConfigLoader is the subset of *config.Store the engine reads at the
// start of every job.
type ConfigLoader interface {
	LoadGlobalConfig(ctx context.Context) (ingestmodel.GlobalConfig, error)
	LoadUserConfig(ctx context.Context, owner string) (ingestmodel.UserConfig, error)
}

// Publisher is the subset of *eventbus.Bus the engine drives. It is a
// method-based interface (rather than calling eventbus.Publish
// directly, which is a generic function over a concrete *eventbus.Bus)
// so tests can substitute a fake without a live broker.
type Publisher interface {
	PublishJobUpdated(ctx context.Context, payload eventbus.JobUpdated) error
}

// BusPublisher adapts a real *eventbus.Bus to Publisher.
type BusPublisher struct{ Bus *eventbus.Bus }

// PublishJobUpdated implements Publisher.
func (p BusPublisher) PublishJobUpdated(ctx context.Context, payload eventbus.JobUpdated) error {
	return eventbus.Publish(ctx, p.Bus, payload)
}

// Clock lets tests stub the wall clock; production always uses
// time.Now.
type Clock func() time.Time

// Engine owns worker_concurrency self-polling workers sharing one
// Pipeline, ConfigLoader, and Enumerator.
type Engine struct {
	store       jobstore.Store
	cfg         ConfigLoader
	enumerator  Enumerator
	registry    *sitehandler.Registry
	pipe        *pipeline.Pipeline
	publisher   Publisher
	scratchRoot string
	numWorkers  int
	now         Clock

	mkdirAll  func(path string) error
	removeAll func(path string) error
}

// New returns an Engine ready to Run. numWorkers is typically
// GlobalConfig.WorkerConcurrency, read by the caller before Engine
// construction since it governs how many goroutines to start, not a
// per-job decision.
func New(
	store jobstore.Store,
	cfg ConfigLoader,
	enumerator Enumerator,
	registry *sitehandler.Registry,
	pipe *pipeline.Pipeline,
	publisher Publisher,
	scratchRoot string,
	numWorkers int,
) *Engine {
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &Engine{
		store:       store,
		cfg:         cfg,
		enumerator:  enumerator,
		registry:    registry,
		pipe:        pipe,
		publisher:   publisher,
		scratchRoot: scratchRoot,
		numWorkers:  numWorkers,
		now:         time.Now,
		mkdirAll:    defaultMkdirAll,
		removeAll:   defaultRemoveAll,
	}
}

// Run blocks, running numWorkers self-polling workers until ctx is
// canceled.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go func(id int) {
			defer wg.Done()
			e.workerLoop(ctx, fmt.Sprintf("worker-%d", id))
		}(i)
	}
	wg.Wait()
}

func (e *Engine) workerLoop(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := e.store.ClaimNext(ctx, workerID)
		if err != nil {
			slog.ErrorContext(ctx, "workerengine: claim failed", "worker_id", workerID, "error", err)
			sleepOrDone(ctx, pollInterval)

			continue
		}
		if job == nil {
			sleepOrDone(ctx, pollInterval)

			continue
		}

		// ClaimNext already transitioned the row to downloading; announce
		// that milestone before doing any work.
		e.publish(ctx, *job, ingestmodel.StatusDownloading, intPtr(25), nil)
		e.processJob(ctx, job, workerID)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func intPtr(n int) *int { return &n }
