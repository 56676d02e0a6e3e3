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

package booruclient

// Post is the subset of the Booru's post resource the pipeline reads
// or writes.
type Post struct {
	ID      int64    `json:"id"`
	Version int      `json:"version"`
	Tags    []string `json:"tags"`
	Source  string   `json:"source"`
	Safety  string   `json:"safety"`
	Checksum string  `json:"checksum"`
}

// ReverseSearchResult is the response shape for ReverseSearch.
type ReverseSearchResult struct {
	Exact   *Post
	Similar []Post
}

// UpdatePostRequest carries only the fields the caller wants changed;
// nil fields are left untouched server-side.
type UpdatePostRequest struct {
	Tags      []string
	Source    *string
	Relations []int64
	Safety    *string
}
