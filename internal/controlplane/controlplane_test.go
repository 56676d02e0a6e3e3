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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/boorudev/ingestpipe/internal/eventbus"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
)

type fakePublisher struct {
	mu       sync.Mutex
	payloads []eventbus.JobUpdated
}

func (f *fakePublisher) PublishJobUpdated(_ context.Context, payload eventbus.JobUpdated) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)

	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.payloads)
}

type fakeConfigLoader struct {
	global ingestmodel.GlobalConfig
}

func (f fakeConfigLoader) LoadGlobalConfig(context.Context) (ingestmodel.GlobalConfig, error) {
	return f.global, nil
}

func newTestController(t *testing.T, store *jobstore.MemStore, pub *fakePublisher, cfg fakeConfigLoader) *Controller {
	t.Helper()

	c := New(store, pub, cfg, t.TempDir())
	c.removeAll = func(string) error { return nil }

	return c
}

func createJobWithStatus(t *testing.T, store *jobstore.MemStore, status ingestmodel.Status) uuid.UUID {
	t.Helper()

	id, err := store.Create(context.Background(), jobstore.JobDraft{JobType: ingestmodel.JobTypeURL, URL: "u", Owner: "alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if status != ingestmodel.StatusPending {
		if err := store.Update(context.Background(), id, jobstore.Mutations{Status: &status}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	return id
}

func TestPauseOnlyValidFromActiveStates(t *testing.T) {
	store := jobstore.NewMemStore()
	pub := &fakePublisher{}
	c := newTestController(t, store, pub, fakeConfigLoader{})

	tagging := createJobWithStatus(t, store, ingestmodel.StatusTagging)
	if err := c.Pause(context.Background(), tagging); err != nil {
		t.Fatalf("Pause from tagging: %v", err)
	}
	got, _ := store.Get(context.Background(), tagging)
	if got.Status != ingestmodel.StatusPaused {
		t.Fatalf("status = %v, want paused", got.Status)
	}

	pending := createJobWithStatus(t, store, ingestmodel.StatusPending)
	if err := c.Pause(context.Background(), pending); !errors.Is(err, ingestmodel.ErrInvalidTransition) {
		t.Fatalf("Pause from pending: err = %v, want ErrInvalidTransition", err)
	}
}

func TestStopValidFromAnyNonTerminalState(t *testing.T) {
	store := jobstore.NewMemStore()
	c := newTestController(t, store, &fakePublisher{}, fakeConfigLoader{})

	pending := createJobWithStatus(t, store, ingestmodel.StatusPending)
	if err := c.Stop(context.Background(), pending); err != nil {
		t.Fatalf("Stop from pending: %v", err)
	}

	completed := createJobWithStatus(t, store, ingestmodel.StatusCompleted)
	if err := c.Stop(context.Background(), completed); !errors.Is(err, ingestmodel.ErrInvalidTransition) {
		t.Fatalf("Stop from completed: err = %v, want ErrInvalidTransition", err)
	}
}

func TestResumeTransitionsPausedOrStoppedToPending(t *testing.T) {
	store := jobstore.NewMemStore()
	c := newTestController(t, store, &fakePublisher{}, fakeConfigLoader{})

	paused := createJobWithStatus(t, store, ingestmodel.StatusPaused)
	if err := c.Resume(context.Background(), paused); err != nil {
		t.Fatalf("Resume from paused: %v", err)
	}
	got, _ := store.Get(context.Background(), paused)
	if got.Status != ingestmodel.StatusPending {
		t.Fatalf("status = %v, want pending", got.Status)
	}
}

func TestRetryClearsErrorAndRetryCountImmediatelyWithoutDelay(t *testing.T) {
	store := jobstore.NewMemStore()
	id := createJobWithStatus(t, store, ingestmodel.StatusFailed)
	retryCount, errMsg := 3, "boom"
	if err := store.Update(context.Background(), id, jobstore.Mutations{RetryCount: &retryCount, ErrorMessage: &errMsg}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	c := newTestController(t, store, &fakePublisher{}, fakeConfigLoader{})
	if err := c.Retry(context.Background(), id); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	got, _ := store.Get(context.Background(), id)
	if got.Status != ingestmodel.StatusPending {
		t.Fatalf("status = %v, want pending", got.Status)
	}
	if got.RetryCount != 0 || got.ErrorMessage != "" {
		t.Fatalf("RetryCount/ErrorMessage = %d/%q, want 0/\"\"", got.RetryCount, got.ErrorMessage)
	}
}

func TestRetryWithConfiguredDelayWaitsBeforeRequeuing(t *testing.T) {
	store := jobstore.NewMemStore()
	id := createJobWithStatus(t, store, ingestmodel.StatusFailed)

	c := newTestController(t, store, &fakePublisher{}, fakeConfigLoader{global: ingestmodel.GlobalConfig{RetryDelay: 30 * time.Millisecond}})
	if err := c.Retry(context.Background(), id); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	got, _ := store.Get(context.Background(), id)
	if got.Status != ingestmodel.StatusFailed {
		t.Fatalf("status = %v immediately after Retry, want still failed pending the delay", got.Status)
	}

	time.Sleep(80 * time.Millisecond)
	got, _ = store.Get(context.Background(), id)
	if got.Status != ingestmodel.StatusPending {
		t.Fatalf("status = %v after delay elapsed, want pending", got.Status)
	}
}

func TestRetryInvalidFromNonFailedState(t *testing.T) {
	store := jobstore.NewMemStore()
	c := newTestController(t, store, &fakePublisher{}, fakeConfigLoader{})

	id := createJobWithStatus(t, store, ingestmodel.StatusCompleted)
	if err := c.Retry(context.Background(), id); !errors.Is(err, ingestmodel.ErrInvalidTransition) {
		t.Fatalf("Retry from completed: err = %v, want ErrInvalidTransition", err)
	}
}

func TestDeleteRemovesJobRegardlessOfStatus(t *testing.T) {
	store := jobstore.NewMemStore()
	c := newTestController(t, store, &fakePublisher{}, fakeConfigLoader{})

	id := createJobWithStatus(t, store, ingestmodel.StatusDownloading)
	if err := c.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(context.Background(), id); !errors.Is(err, jobstore.ErrNotFound) {
		t.Fatalf("Get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestBulkAppliesActionToEveryJobAsynchronously(t *testing.T) {
	store := jobstore.NewMemStore()
	pub := &fakePublisher{}
	c := newTestController(t, store, pub, fakeConfigLoader{})

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, createJobWithStatus(t, store, ingestmodel.StatusPending))
	}

	c.Bulk(ActionStop, ids)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pub.count() == len(ids) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	for _, id := range ids {
		got, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != ingestmodel.StatusStopped {
			t.Fatalf("job %s status = %v, want stopped", id, got.Status)
		}
	}
}

func TestStartPublishesWithoutChangingStatus(t *testing.T) {
	store := jobstore.NewMemStore()
	pub := &fakePublisher{}
	c := newTestController(t, store, pub, fakeConfigLoader{})

	id := createJobWithStatus(t, store, ingestmodel.StatusPending)
	if err := c.Start(context.Background(), id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, _ := store.Get(context.Background(), id)
	if got.Status != ingestmodel.StatusPending {
		t.Fatalf("status = %v, want pending", got.Status)
	}
	if pub.count() != 1 {
		t.Fatalf("publish count = %d, want 1", pub.count())
	}
}
