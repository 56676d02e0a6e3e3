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

package ingestmodel

import "time"

// ExtractedMedia is one media item produced by the Extractor. Order is
// preserved across a single enumerate() call; index 0 is primary.
type ExtractedMedia struct {
	PageURL           string
	DirectURL         string
	SuggestedFilename string
	Metadata          map[string]any
}

// TagCacheEntry is the persistent/in-memory record backing the Tag
// Cache: name -> (category, verified_at).
type TagCacheEntry struct {
	Name       string
	Category   string
	VerifiedAt time.Time
}

// tagCacheTTL is the 30-day staleness window for tag cache entries.
const tagCacheTTL = 30 * 24 * time.Hour

// Stale reports whether the entry must be re-verified before use.
func (e TagCacheEntry) Stale(now time.Time) bool {
	return now.Sub(e.VerifiedAt) > tagCacheTTL
}

// CategoryMapping maps a metadata source key (e.g. "tags_artist") to
// the Booru tag category it should bind to.
type CategoryMapping map[string]string

// GlobalConfig is read once per job at worker claim time.
type GlobalConfig struct {
	WD14Enabled             bool
	WD14ConfidenceThreshold float64
	WD14MaxTags             int
	WD14Model               string
	WorkerConcurrency       int
	DownloadTimeout         time.Duration
	VideoTimeout            time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	CategoryMapping         CategoryMapping
}

// UserConfig holds decrypted per-owner credentials loaded once at job
// start and never persisted in memory beyond the job's lifetime.
type UserConfig struct {
	Owner            string
	BooruBaseURL     string
	BooruUsername    string
	BooruToken       string
	SiteCredentials  map[string]map[string]string // handler name -> credential key -> value
}
