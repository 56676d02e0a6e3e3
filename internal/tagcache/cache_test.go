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

package tagcache

import (
	"context"
	"sync"
	"testing"

	"github.com/boorudev/ingestpipe/internal/jobstore"
)

// fakeRemote is an in-memory stand-in for the Booru tag API.
type fakeRemote struct {
	mu          sync.Mutex
	tags        map[string]*RemoteTag
	createCalls int
	getCalls    int
	updateCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{tags: make(map[string]*RemoteTag)}
}

func (f *fakeRemote) CreateTag(_ context.Context, name, category string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	if _, ok := f.tags[name]; ok {
		return ErrAlreadyExists
	}
	f.tags[name] = &RemoteTag{Name: name, Category: category, Version: 1}

	return nil
}

func (f *fakeRemote) GetTag(_ context.Context, name string) (*RemoteTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++

	tag, ok := f.tags[name]
	if !ok {
		return nil, jobstore.ErrNotFound
	}
	cp := *tag

	return &cp, nil
}

func (f *fakeRemote) UpdateTagCategory(_ context.Context, name string, version int, category string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++

	tag, ok := f.tags[name]
	if !ok || tag.Version != version {
		return jobstore.ErrNotFound
	}
	tag.Category = category
	tag.Version++

	return nil
}

func TestEnsureCreatesNewTag(t *testing.T) {
	remote := newFakeRemote()
	cache := New(remote, jobstore.NewMemStore())
	ctx := context.Background()

	if err := cache.Ensure(ctx, "blue_hair", "general"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if remote.createCalls != 1 {
		t.Fatalf("want 1 create call, got %d", remote.createCalls)
	}

	entry, ok := cache.mem.Get("blue_hair")
	if !ok || entry.Category != "general" {
		t.Fatalf("expected cached entry with category general, got %+v ok=%v", entry, ok)
	}
}

// TestEnsureIsIdempotentWithoutRemoteCalls exercises the invariant that
// once ensure(t, c) succeeds, a subsequent ensure(t, c) performs no
// remote calls.
func TestEnsureIsIdempotentWithoutRemoteCalls(t *testing.T) {
	remote := newFakeRemote()
	cache := New(remote, jobstore.NewMemStore())
	ctx := context.Background()

	if err := cache.Ensure(ctx, "blue_hair", "general"); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := cache.Ensure(ctx, "blue_hair", "general"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	if remote.createCalls != 1 || remote.getCalls != 0 || remote.updateCalls != 0 {
		t.Fatalf("expected no further remote calls on repeat ensure, got create=%d get=%d update=%d",
			remote.createCalls, remote.getCalls, remote.updateCalls)
	}
}

func TestEnsureHealsMismatchedRemoteCategory(t *testing.T) {
	remote := newFakeRemote()
	remote.tags["artist"] = &RemoteTag{Name: "artist", Category: "general", Version: 3}
	cache := New(remote, jobstore.NewMemStore())
	ctx := context.Background()

	if err := cache.Ensure(ctx, "artist", "artist"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if remote.updateCalls != 1 {
		t.Fatalf("want 1 update call healing the category mismatch, got %d", remote.updateCalls)
	}
	entry, ok := cache.mem.Get("artist")
	if !ok || entry.Category != "artist" {
		t.Fatalf("expected healed cache entry, got %+v ok=%v", entry, ok)
	}
}

func TestEnsureBatchBoundsConcurrency(t *testing.T) {
	remote := newFakeRemote()
	cache := New(remote, jobstore.NewMemStore())
	ctx := context.Background()

	pairs := make([]Pair, 0, 25)
	for i := 0; i < 25; i++ {
		pairs = append(pairs, Pair{Name: string(rune('a' + i)), Category: "general"})
	}

	if err := cache.EnsureBatch(ctx, pairs); err != nil {
		t.Fatalf("ensure batch: %v", err)
	}
	if cache.mem.Len() != 25 {
		t.Fatalf("want 25 cached entries, got %d", cache.mem.Len())
	}
}

func TestWarmPopulatesFromPersistentTier(t *testing.T) {
	store := jobstore.NewMemStore()
	remote := newFakeRemote()

	seed := New(remote, store)
	ctx := context.Background()
	if err := seed.Ensure(ctx, "scenery", "general"); err != nil {
		t.Fatalf("seed ensure: %v", err)
	}

	fresh := New(newFakeRemote(), store)
	if err := fresh.Warm(ctx); err != nil {
		t.Fatalf("warm: %v", err)
	}

	entry, ok := fresh.mem.Get("scenery")
	if !ok || entry.Category != "general" {
		t.Fatalf("expected warmed entry, got %+v ok=%v", entry, ok)
	}
}
