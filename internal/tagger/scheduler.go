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

package tagger

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ModelLoader lazily constructs the (potentially expensive) inference
// backend. Tagger guards calls to it with a singleflight.Group so
// concurrent callers racing to tag the first image never load the
// model twice.
type ModelLoader func(ctx context.Context) (Model, error)

type tagRequest struct {
	run      func(model Model) (TagResult, error)
	resultCh chan tagOutcome
}

type tagOutcome struct {
	result TagResult
	err    error
}

// Tagger schedules image/video tagging onto a small pool of dedicated
// workers, the same way any other bounded job type would be scheduled
// onto a fixed-size worker pool, so CPU-bound model inference never
// blocks the pipeline's control-flow goroutines.
type Tagger struct {
	requests chan tagRequest
	load     ModelLoader
	loadOnce singleflight.Group

	mu    sync.Mutex
	model Model

	extractor FrameExtractor

	confidenceThreshold float64
	maxTags             int
}

// Config carries the thresholds read from GlobalConfig at worker start.
type Config struct {
	ConfidenceThreshold float64
	MaxTags             int
	Concurrency         int
}

// New starts cfg.Concurrency goroutines (at least one) backed by load, ready to accept
// TagImage/TagVideo calls.
func New(ctx context.Context, cfg Config, load ModelLoader, extractor FrameExtractor) *Tagger {
	t := &Tagger{
		requests:            make(chan tagRequest),
		load:                load,
		extractor:           extractor,
		confidenceThreshold: cfg.ConfidenceThreshold,
		maxTags:             cfg.MaxTags,
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		go t.worker(ctx)
	}

	return t
}

func (t *Tagger) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-t.requests:
			if !ok {
				return
			}
			model, err := t.ensureModel(ctx)
			if err != nil {
				req.resultCh <- tagOutcome{err: fmt.Errorf("tagger: load model: %w", err)}

				continue
			}
			result, err := req.run(model)
			req.resultCh <- tagOutcome{result: result, err: err}
		}
	}
}

func (t *Tagger) ensureModel(ctx context.Context) (Model, error) {
	t.mu.Lock()
	if t.model != nil {
		defer t.mu.Unlock()

		return t.model, nil
	}
	t.mu.Unlock()

	v, err, _ := t.loadOnce.Do("model", func() (any, error) {
		return t.load(ctx)
	})
	if err != nil {
		return nil, err
	}

	model := v.(Model)
	t.mu.Lock()
	t.model = model
	t.mu.Unlock()

	return model, nil
}

func (t *Tagger) submit(ctx context.Context, run func(model Model) (TagResult, error)) (TagResult, error) {
	req := tagRequest{run: run, resultCh: make(chan tagOutcome, 1)}

	select {
	case t.requests <- req:
	case <-ctx.Done():
		return TagResult{}, ctx.Err()
	}

	select {
	case out := <-req.resultCh:
		return out.result, out.err
	case <-ctx.Done():
		return TagResult{}, ctx.Err()
	}
}

// TagImage tags a single image file.
func (t *Tagger) TagImage(ctx context.Context, path string) (TagResult, error) {
	return t.submit(ctx, func(model Model) (TagResult, error) {
		return tagImage(ctx, model, path, t.confidenceThreshold, t.maxTags)
	})
}

// TagVideo extracts key frames from path and tags their aggregate.
func (t *Tagger) TagVideo(ctx context.Context, path string, sceneThreshold float64, maxFrames int, minFrameRatio float64) (TagResult, error) {
	opts := videoOptions{SceneThreshold: sceneThreshold, MaxFrames: maxFrames, MinFrameRatio: minFrameRatio}

	return t.submit(ctx, func(model Model) (TagResult, error) {
		return tagVideo(ctx, model, t.extractor, path, opts, t.confidenceThreshold, t.maxTags)
	})
}
