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

package pipeline

import (
	"context"
	"testing"

	"github.com/boorudev/ingestpipe/internal/booruclient"
)

type fakeBooru struct {
	reverseSearchResult *booruclient.ReverseSearchResult
	reverseSearchErr    error
	uploadResult        *booruclient.Post
	uploadErr           error
	getPostResult       *booruclient.Post
	getPostErr          error
	updatePostResult    *booruclient.Post
	updatePostErr       error

	updateCalls    []booruclient.UpdatePostRequest
	uploadedSafety string
}

func (f *fakeBooru) ReverseSearch(context.Context, booruclient.Credentials, string) (*booruclient.ReverseSearchResult, error) {
	return f.reverseSearchResult, f.reverseSearchErr
}

func (f *fakeBooru) Upload(_ context.Context, _ booruclient.Credentials, _ string, _ []string, safety, _ string) (*booruclient.Post, error) {
	f.uploadedSafety = safety

	return f.uploadResult, f.uploadErr
}

func (f *fakeBooru) GetPost(context.Context, booruclient.Credentials, int64) (*booruclient.Post, error) {
	return f.getPostResult, f.getPostErr
}

func (f *fakeBooru) UpdatePost(_ context.Context, _ booruclient.Credentials, id int64, version int, update booruclient.UpdatePostRequest) (*booruclient.Post, error) {
	f.updateCalls = append(f.updateCalls, update)

	return f.updatePostResult, f.updatePostErr
}

func TestUploadOrMergeUploadsFreshWhenNoExactMatch(t *testing.T) {
	booru := &fakeBooru{
		reverseSearchResult: &booruclient.ReverseSearchResult{},
		uploadResult:        &booruclient.Post{ID: 10, Version: 1},
	}
	p := &Pipeline{booru: booru}

	outcome, err := p.uploadOrMerge(context.Background(), uploadRequest{Tags: []string{"a"}})
	if err != nil {
		t.Fatalf("uploadOrMerge: %v", err)
	}
	if outcome.PostID != 10 || outcome.WasMerge {
		t.Errorf("outcome = %+v, want fresh upload with PostID 10", outcome)
	}
}

func TestUploadOrMergeSkipsOnDuplicateContent(t *testing.T) {
	booru := &fakeBooru{
		reverseSearchResult: &booruclient.ReverseSearchResult{},
		uploadErr:           booruclient.ErrDuplicateContent,
	}
	p := &Pipeline{booru: booru}

	outcome, err := p.uploadOrMerge(context.Background(), uploadRequest{})
	if err != nil {
		t.Fatalf("uploadOrMerge: %v", err)
	}
	if !outcome.Skipped {
		t.Errorf("outcome = %+v, want Skipped", outcome)
	}
}

func TestUploadOrMergeMergesIntoExactMatch(t *testing.T) {
	existing := booruclient.Post{ID: 5, Version: 2, Tags: []string{"a"}, Source: "https://x.example.com/1"}
	booru := &fakeBooru{
		reverseSearchResult: &booruclient.ReverseSearchResult{Exact: &existing},
		getPostResult:        &existing,
		updatePostResult:     &booruclient.Post{ID: 5, Version: 3},
	}
	p := &Pipeline{booru: booru}

	outcome, err := p.uploadOrMerge(context.Background(), uploadRequest{
		Tags:   []string{"A", "b"},
		Source: "https://y.example.com/2",
	})
	if err != nil {
		t.Fatalf("uploadOrMerge: %v", err)
	}
	if !outcome.WasMerge || outcome.PostID != 5 || outcome.Version != 3 {
		t.Errorf("outcome = %+v, want merged PostID 5 Version 3", outcome)
	}
	if len(booru.updateCalls) != 1 {
		t.Fatalf("updateCalls = %d, want 1", len(booru.updateCalls))
	}
	if len(booru.updateCalls[0].Tags) != 2 {
		t.Errorf("merged tags = %v, want 2 entries (a, b)", booru.updateCalls[0].Tags)
	}
}

func TestUploadOrMergeSkipsUpdateWhenNothingChanged(t *testing.T) {
	existing := booruclient.Post{ID: 5, Version: 2, Tags: []string{"a"}, Source: "https://x.example.com/1"}
	booru := &fakeBooru{
		reverseSearchResult: &booruclient.ReverseSearchResult{Exact: &existing},
		getPostResult:        &existing,
	}
	p := &Pipeline{booru: booru}

	outcome, err := p.uploadOrMerge(context.Background(), uploadRequest{
		Tags:   []string{"a"},
		Source: "https://x.example.com/1",
	})
	if err != nil {
		t.Fatalf("uploadOrMerge: %v", err)
	}
	if !outcome.WasMerge || outcome.Version != 2 {
		t.Errorf("outcome = %+v, want no-op merge at version 2", outcome)
	}
	if len(booru.updateCalls) != 0 {
		t.Errorf("updateCalls = %d, want 0 (nothing changed)", len(booru.updateCalls))
	}
}
