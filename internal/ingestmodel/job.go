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

// Package ingestmodel holds the persistent and ephemeral types shared
// across the job pipeline engine: Job, its state machine, ExtractedMedia,
// TagCacheEntry, and the per-job configuration snapshots.
package ingestmodel

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is one of the job lifecycle states.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusTagging     Status = "tagging"
	StatusUploading   Status = "uploading"
	StatusCompleted   Status = "completed"
	StatusMerged      Status = "merged"
	StatusFailed      Status = "failed"
	StatusPaused      Status = "paused"
	StatusStopped     Status = "stopped"
)

// Terminal reports whether a job in this status will never transition
// again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusMerged, StatusFailed:
		return true
	default:
		return false
	}
}

// JobType distinguishes how a job's media was sourced.
type JobType string

const (
	JobTypeURL         JobType = "url"
	JobTypeFile        JobType = "file"
	JobTypeTagExisting JobType = "tag_existing"
)

// Safety is the content-rating bucket applied to uploaded posts.
type Safety string

const (
	SafetySafe    Safety = "safe"
	SafetySketchy Safety = "sketchy"
	SafetyUnsafe  Safety = "unsafe"
)

// Valid reports whether s names one of the three rating buckets.
func (s Safety) Valid() bool {
	switch s {
	case SafetySafe, SafetySketchy, SafetyUnsafe:
		return true
	default:
		return false
	}
}

// Job is the persistent primary entity of the engine.
type Job struct {
	ID                uuid.UUID
	Status            Status
	JobType           JobType
	URL               string
	OriginalFilename  string
	SourceOverride    string
	InitialTags       []string
	Safety            Safety
	SkipTagging       bool
	Owner             string
	TargetPostID      *int64
	SzuruPostID       *int64
	RelatedPostIDs    []int64
	WasMerge          bool
	ErrorMessage      string
	RetryCount        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	TagsApplied       []string
	TagsFromSource    []string
	TagsFromAI        []string
}

// maxErrorMessageBytes bounds ErrorMessage so a runaway stack trace
// doesn't bloat a job row.
const maxErrorMessageBytes = 4096

// TruncateError bounds an error string to the 4 KiB limit carried on
// terminal failure.
func TruncateError(msg string) string {
	if len(msg) <= maxErrorMessageBytes {
		return msg
	}

	return msg[:maxErrorMessageBytes]
}

// allowedTransitions enumerates the job status state machine.
// Resume and retry are handled specially since they depend on which
// non-terminal/terminal state the job is leaving, not a fixed edge.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending:     {StatusDownloading: true, StatusPaused: true, StatusStopped: true, StatusFailed: true},
	StatusDownloading: {StatusTagging: true, StatusPaused: true, StatusStopped: true, StatusFailed: true},
	StatusTagging:     {StatusUploading: true, StatusPaused: true, StatusStopped: true, StatusFailed: true},
	StatusUploading: {
		StatusCompleted: true, StatusMerged: true, StatusPaused: true, StatusStopped: true, StatusFailed: true,
	},
	StatusPaused:  {StatusPending: true},
	StatusStopped: {StatusPending: true},
	StatusFailed:  {StatusPending: true},
}

// ErrInvalidTransition indicates a requested status change is not a
// permitted edge of the job state machine.
var ErrInvalidTransition = errors.New("invalid job status transition")

// CanTransition reports whether moving a job from `from` to `to` is a
// legal edge of the state machine. Terminal states other than `failed`
// never transition further.
func CanTransition(from, to Status) bool {
	if from.Terminal() && from != StatusFailed {
		return false
	}
	edges, ok := allowedTransitions[from]
	if !ok {
		return false
	}

	return edges[to]
}
