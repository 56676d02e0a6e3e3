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
	"sync"
)

// Pool runs a bounded number of workers over a channel of externally
// produced jobs. Unlike Engine (which polls jobstore itself because
// nothing upstream hands a claimed job to it), bulk control-plane
// operations — pause/stop/retry/delete applied to many job ids at once
// — genuinely are externally produced work: the caller already knows
// every id up front.
type Pool[TJob any] struct{}

// Worker handles a single job pulled from jobs and reports any error
// on errChan.
type Worker[TJob any] interface {
	Work(ctx context.Context, id int, wg *sync.WaitGroup, jobs <-chan TJob, errChan chan<- error)
}

// Start runs numWorkers goroutines draining jobsChan until it closes,
// then returns every non-nil error collected along the way.
func (p Pool[TJob]) Start(ctx context.Context, jobsChan <-chan TJob, numWorkers int, worker Worker[TJob]) []error {
	wg := sync.WaitGroup{}
	errChan := make(chan error)

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go worker.Work(ctx, i, &wg, jobsChan, errChan)
	}

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(errChan)
		doneChan <- struct{}{}
	}()

	var allErrors []error
	for {
		select {
		case err, ok := <-errChan:
			if !ok {
				return allErrors
			}
			if err != nil {
				allErrors = append(allErrors, err)
			}
		case <-doneChan:
			slog.InfoContext(ctx, "workerengine: bulk pool finished", "error_count", len(allErrors))

			return allErrors
		}
	}
}
