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

// Package localcache is a generic, thread-safe in-memory map shared by
// every worker goroutine in this process. It is the fast tier of the
// tag cache; a slower, persistent tier backs it.
package localcache

import "sync"

// Cache is a generic in-memory map guarded by a single RWMutex. Writes
// are last-writer-wins, which is sufficient for the tag cache's
// verified_at semantics: a concurrent re-verification of the same tag
// converges regardless of goroutine interleaving.
type Cache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

// New returns an empty Cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{data: make(map[K]V)}
}

// Set stores v under key, overwriting any prior value.
func (c *Cache[K, V]) Set(key K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
}

// Get returns the value stored under key, if any.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]

	return v, ok
}

// Len reports the number of entries currently cached.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}
