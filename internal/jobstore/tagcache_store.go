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
	"time"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

// UpsertTagCacheEntry stores or refreshes a tag_cache row. It satisfies
// internal/tagcache.PersistentStore.
func (s *PostgresStore) UpsertTagCacheEntry(ctx context.Context, entry ingestmodel.TagCacheEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tag_cache (name, category, verified_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET category = excluded.category, verified_at = excluded.verified_at`,
		entry.Name, entry.Category, entry.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("jobstore: upsert tag cache entry: %w", err)
	}

	return nil
}

// LoadFreshTagCacheEntries returns every tag_cache row verified at or
// after notBefore. It satisfies internal/tagcache.PersistentStore.
func (s *PostgresStore) LoadFreshTagCacheEntries(ctx context.Context, notBefore time.Time) ([]ingestmodel.TagCacheEntry, error) {
	rows, err := s.db.Query(ctx, "SELECT name, category, verified_at FROM tag_cache WHERE verified_at >= $1", notBefore)
	if err != nil {
		return nil, fmt.Errorf("jobstore: load tag cache entries: %w", err)
	}
	defer rows.Close()

	var out []ingestmodel.TagCacheEntry
	for rows.Next() {
		var e ingestmodel.TagCacheEntry
		if err := rows.Scan(&e.Name, &e.Category, &e.VerifiedAt); err != nil {
			return nil, fmt.Errorf("jobstore: load tag cache entries: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobstore: load tag cache entries: rows: %w", err)
	}

	return out, nil
}

// UpsertTagCacheEntry is MemStore's in-memory equivalent, used in tests.
func (m *MemStore) UpsertTagCacheEntry(_ context.Context, entry ingestmodel.TagCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tagCache == nil {
		m.tagCache = make(map[string]ingestmodel.TagCacheEntry)
	}
	m.tagCache[entry.Name] = entry

	return nil
}

// LoadFreshTagCacheEntries is MemStore's in-memory equivalent, used in tests.
func (m *MemStore) LoadFreshTagCacheEntries(_ context.Context, notBefore time.Time) ([]ingestmodel.TagCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ingestmodel.TagCacheEntry
	for _, e := range m.tagCache {
		if !e.VerifiedAt.Before(notBefore) {
			out = append(out, e)
		}
	}

	return out, nil
}
