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

// Package tagcache maintains name -> (category, verified_at) with a
// 30-day TTL, healing category mismatches against the
// Booru and guaranteeing that, once Ensure succeeds for a tag, every
// subsequent use of that tag treats its category as fixed until the
// entry expires or is evicted.
package tagcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/localcache"
)

// ttl is the staleness window for a cached tag-category mapping.
const ttl = 30 * 24 * time.Hour

// maxEnsureBatchParallelism bounds concurrent remote calls from
// EnsureBatch.
const maxEnsureBatchParallelism = 10

// ErrAlreadyExists is returned by RemoteTagClient.CreateTag when the
// Booru already has a tag with that name.
var ErrAlreadyExists = errors.New("tagcache: tag already exists")

// RemoteTag is the subset of the Booru's tag resource Ensure needs.
type RemoteTag struct {
	Name     string
	Category string
	Version  int
}

// RemoteTagClient is the Booru-facing contract Ensure drives.
type RemoteTagClient interface {
	CreateTag(ctx context.Context, name, category string) error
	GetTag(ctx context.Context, name string) (*RemoteTag, error)
	UpdateTagCategory(ctx context.Context, name string, version int, category string) error
}

// PersistentStore is the durable tier backing warm().
type PersistentStore interface {
	UpsertTagCacheEntry(ctx context.Context, entry ingestmodel.TagCacheEntry) error
	LoadFreshTagCacheEntries(ctx context.Context, notBefore time.Time) ([]ingestmodel.TagCacheEntry, error)
}

// Cache is the two-tier tag cache.
type Cache struct {
	mem    *localcache.Cache[string, ingestmodel.TagCacheEntry]
	remote RemoteTagClient
	store  PersistentStore
	clock  func() time.Time
}

// New constructs a Cache. Call Warm once at startup to populate the
// in-memory tier from the persistent table.
func New(remote RemoteTagClient, store PersistentStore) *Cache {
	return &Cache{
		mem:    localcache.New[string, ingestmodel.TagCacheEntry](),
		remote: remote,
		store:  store,
		clock:  time.Now,
	}
}

// Warm loads every non-stale entry from the persistent table into the
// in-memory tier.
func (c *Cache) Warm(ctx context.Context) error {
	entries, err := c.store.LoadFreshTagCacheEntries(ctx, c.clock().Add(-ttl))
	if err != nil {
		return fmt.Errorf("tagcache: warm: %w", err)
	}
	for _, e := range entries {
		c.mem.Set(e.Name, e)
	}
	slog.Info("tagcache: warmed", "entries", len(entries))

	return nil
}

// Ensure guarantees the Booru has a tag named name with category
// desiredCategory, healing a mismatched remote category in place.
func (c *Cache) Ensure(ctx context.Context, name, desiredCategory string) error {
	key := strings.ToLower(name)
	desiredCategory = strings.ToLower(desiredCategory)

	if entry, ok := c.mem.Get(key); ok && !entry.Stale(c.clock()) && entry.Category == desiredCategory {
		return nil
	}

	err := c.remote.CreateTag(ctx, name, desiredCategory)
	switch {
	case err == nil:
		c.record(key, desiredCategory)

		return nil
	case errors.Is(err, ErrAlreadyExists):
		// fall through to the reconcile path below
	default:
		return fmt.Errorf("tagcache: ensure %q: %w", name, err)
	}

	remoteTag, err := c.remote.GetTag(ctx, name)
	if err != nil {
		return fmt.Errorf("tagcache: ensure %q: get existing: %w", name, err)
	}
	if strings.ToLower(remoteTag.Category) != desiredCategory {
		if err := c.remote.UpdateTagCategory(ctx, name, remoteTag.Version, desiredCategory); err != nil {
			return fmt.Errorf("tagcache: ensure %q: heal category: %w", name, err)
		}
	}
	c.record(key, desiredCategory)

	return nil
}

func (c *Cache) record(key, category string) {
	entry := ingestmodel.TagCacheEntry{Name: key, Category: category, VerifiedAt: c.clock()}
	c.mem.Set(key, entry)
	if err := c.store.UpsertTagCacheEntry(context.Background(), entry); err != nil {
		slog.Error("tagcache: persist entry failed", "name", key, "error", err)
	}
}

// Pair is one (tag, category) request to EnsureBatch.
type Pair struct {
	Name     string
	Category string
}

// EnsureBatch runs Ensure over every pair with bounded parallelism.
func (c *Cache) EnsureBatch(ctx context.Context, pairs []Pair) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxEnsureBatchParallelism)

	for _, p := range pairs {
		p := p
		g.Go(func() error {
			return c.Ensure(gctx, p.Name, p.Category)
		})
	}

	return g.Wait()
}
