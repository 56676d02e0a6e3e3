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

package jobstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

func TestClaimNextExclusivity(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	const numJobs = 50
	ids := make(map[string]bool, numJobs)
	for i := 0; i < numJobs; i++ {
		id, err := store.Create(ctx, JobDraft{JobType: ingestmodel.JobTypeURL, Owner: "alice", URL: fmt.Sprintf("u%d", i)})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids[id.String()] = true
	}

	const numWorkers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := make(map[string]int)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				job, err := store.ClaimNext(ctx, fmt.Sprintf("worker-%d", workerID))
				if err != nil {
					t.Errorf("claim: %v", err)

					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				claimed[job.ID.String()]++
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	if len(claimed) != numJobs {
		t.Fatalf("expected %d distinct jobs claimed, got %d", numJobs, len(claimed))
	}
	for id, count := range claimed {
		if count != 1 {
			t.Fatalf("job %s claimed %d times, want exactly 1", id, count)
		}
	}
}

func TestTerminalStickiness(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	id, err := store.Create(ctx, JobDraft{JobType: ingestmodel.JobTypeURL, Owner: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	completed := ingestmodel.StatusCompleted
	if err := store.Update(ctx, id, Mutations{Status: &completed}); err != nil {
		t.Fatalf("update: %v", err)
	}

	job, err := store.ClaimNext(ctx, "worker-1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job != nil {
		t.Fatalf("expected no claimable job, got %v", job)
	}

	status, err := store.ObserveStatus(ctx, id)
	if err != nil {
		t.Fatalf("observe status: %v", err)
	}
	if status != ingestmodel.StatusCompleted {
		t.Fatalf("status changed after terminal: got %s", status)
	}
}

func TestListPagination(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	base := now()
	defer freezeClock(base)()

	for i := 0; i < 5; i++ {
		if _, err := store.Create(ctx, JobDraft{JobType: ingestmodel.JobTypeURL, Owner: "bob"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page1, token, total, err := store.List(ctx, Filter{Owner: "bob", PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("want total 5, got %d", total)
	}
	if len(page1) != 2 {
		t.Fatalf("want page size 2, got %d", len(page1))
	}
	if token == "" {
		t.Fatal("expected a next-page token")
	}

	page2, _, _, err := store.List(ctx, Filter{Owner: "bob", PageSize: 2, PageToken: token})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	for _, j := range page2 {
		for _, seen := range page1 {
			if seen.ID == j.ID {
				t.Fatalf("job %s appeared in both pages", j.ID)
			}
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to ingestmodel.Status
		want     bool
	}{
		{ingestmodel.StatusPending, ingestmodel.StatusDownloading, true},
		{ingestmodel.StatusDownloading, ingestmodel.StatusTagging, true},
		{ingestmodel.StatusTagging, ingestmodel.StatusUploading, true},
		{ingestmodel.StatusUploading, ingestmodel.StatusCompleted, true},
		{ingestmodel.StatusUploading, ingestmodel.StatusMerged, true},
		{ingestmodel.StatusCompleted, ingestmodel.StatusPending, false},
		{ingestmodel.StatusMerged, ingestmodel.StatusFailed, false},
		{ingestmodel.StatusFailed, ingestmodel.StatusPending, true},
		{ingestmodel.StatusPaused, ingestmodel.StatusPending, true},
		{ingestmodel.StatusPending, ingestmodel.StatusMerged, false},
	}
	for _, c := range cases {
		if got := ingestmodel.CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
