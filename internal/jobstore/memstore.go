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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

// MemStore is an in-memory Store used by tests and by callers that do
// not want a live Postgres instance (e.g. local development). It
// reproduces the skip-locked claim contract with a single mutex: since
// everything is in one process, "skip locked" degenerates to "pick the
// oldest pending row", which is still race-free under the mutex.
type MemStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*ingestmodel.Job
	tagCache map[string]ingestmodel.TagCacheEntry
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		jobs:     make(map[uuid.UUID]*ingestmodel.Job),
		tagCache: make(map[string]ingestmodel.TagCacheEntry),
	}
}

func (m *MemStore) Create(_ context.Context, draft JobDraft) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	ts := now()
	m.jobs[id] = &ingestmodel.Job{
		ID:               id,
		Status:           ingestmodel.StatusPending,
		JobType:          draft.JobType,
		URL:              draft.URL,
		OriginalFilename: draft.OriginalFilename,
		SourceOverride:   draft.SourceOverride,
		InitialTags:      append([]string(nil), draft.InitialTags...),
		Safety:           safetyOrDefault(draft.Safety),
		SkipTagging:      draft.SkipTagging,
		Owner:            draft.Owner,
		TargetPostID:     draft.TargetPostID,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}

	return id, nil
}

func (m *MemStore) ClaimNext(_ context.Context, _ string) (*ingestmodel.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *ingestmodel.Job
	for _, j := range m.jobs {
		if j.Status != ingestmodel.StatusPending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, nil
	}
	oldest.Status = ingestmodel.StatusDownloading
	oldest.UpdatedAt = now()
	cp := *oldest

	return &cp, nil
}

func (m *MemStore) Update(_ context.Context, id uuid.UUID, mut Mutations) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if mut.Status != nil {
		j.Status = *mut.Status
	}
	if mut.SzuruPostID != nil {
		j.SzuruPostID = mut.SzuruPostID
	}
	if mut.RelatedPostIDs != nil {
		j.RelatedPostIDs = mut.RelatedPostIDs
	}
	if mut.WasMerge != nil {
		j.WasMerge = *mut.WasMerge
	}
	if mut.ErrorMessage != nil {
		msg := ingestmodel.TruncateError(*mut.ErrorMessage)
		j.ErrorMessage = msg
	}
	if mut.RetryCount != nil {
		j.RetryCount = *mut.RetryCount
	}
	if mut.TagsApplied != nil {
		j.TagsApplied = mut.TagsApplied
	}
	if mut.TagsFromSource != nil {
		j.TagsFromSource = mut.TagsFromSource
	}
	if mut.TagsFromAI != nil {
		j.TagsFromAI = mut.TagsFromAI
	}
	j.UpdatedAt = now()

	return nil
}

func (m *MemStore) ObserveStatus(_ context.Context, id uuid.UUID) (ingestmodel.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return "", ErrNotFound
	}

	return j.Status, nil
}

func (m *MemStore) Get(_ context.Context, id uuid.UUID) (*ingestmodel.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j

	return &cp, nil
}

func (m *MemStore) List(_ context.Context, filter Filter) ([]ingestmodel.Job, string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []ingestmodel.Job
	for _, j := range m.jobs {
		if j.Owner != filter.Owner {
			continue
		}
		if filter.Status != nil && j.Status != *filter.Status {
			continue
		}
		if filter.WasMerge != nil && j.WasMerge != *filter.WasMerge {
			continue
		}
		matched = append(matched, *j)
	}
	sort.Slice(matched, func(i, k int) bool {
		if matched[i].CreatedAt.Equal(matched[k].CreatedAt) {
			return matched[i].ID.String() > matched[k].ID.String()
		}

		return matched[i].CreatedAt.After(matched[k].CreatedAt)
	})

	total := len(matched)
	pageSize := clampPageSize(filter.PageSize)
	start := 0
	if filter.PageToken != "" {
		createdAt, id, err := decodePageToken(filter.PageToken)
		if err != nil {
			return nil, "", 0, err
		}
		for i, j := range matched {
			if j.CreatedAt.Before(createdAt) || (j.CreatedAt.Equal(createdAt) && j.ID.String() < id.String()) {
				start = i

				break
			}
			start = i + 1
		}
	}

	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[start:end]

	var next string
	if end < len(matched) {
		next = encodePageToken(page[len(page)-1].CreatedAt, page[len(page)-1].ID)
	}

	return page, next, total, nil
}

func (m *MemStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(m.jobs, id)

	return nil
}

var _ Store = (*MemStore)(nil)

// freezeClock is a test helper that pins `now` to a fixed instant and
// returns a restore function.
func freezeClock(t time.Time) func() {
	prev := now
	now = func() time.Time { return t }

	return func() { now = prev }
}
