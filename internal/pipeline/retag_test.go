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
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

func TestRetagExistingMergesNewTagsIntoPost(t *testing.T) {
	booru := &fakeBooru{
		getPostResult:    &booruclient.Post{ID: 12, Version: 4, Tags: []string{"blue"}},
		updatePostResult: &booruclient.Post{ID: 12, Version: 5},
	}
	materializer := &fakeTagMaterializer{}
	p := New(fakeDownloader{}, fakeTagger{}, materializer, booru)

	outcome, err := p.RetagExisting(context.Background(), RetagRequest{
		PostID:      12,
		InitialTags: []string{"artist:alice", "Blue", "red"},
	})
	if err != nil {
		t.Fatalf("RetagExisting: %v", err)
	}

	if outcome.PostID != 12 || outcome.Version != 5 {
		t.Errorf("outcome = %+v, want post 12 version 5", outcome)
	}
	if len(booru.updateCalls) != 1 {
		t.Fatalf("update calls = %d, want 1", len(booru.updateCalls))
	}
	got := booru.updateCalls[0].Tags
	want := []string{"blue", "alice", "red"}
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tags = %v, want %v", got, want)
		}
	}
	if len(materializer.pairs) != 2 {
		t.Errorf("pairs = %v, want alice and red materialized", materializer.pairs)
	}
}

func TestRetagExistingSkipsUpdateWhenNothingNew(t *testing.T) {
	booru := &fakeBooru{
		getPostResult: &booruclient.Post{ID: 12, Version: 4, Tags: []string{"blue"}},
	}
	p := New(fakeDownloader{}, fakeTagger{}, &fakeTagMaterializer{}, booru)

	outcome, err := p.RetagExisting(context.Background(), RetagRequest{
		PostID:      12,
		InitialTags: []string{"Blue"},
	})
	if err != nil {
		t.Fatalf("RetagExisting: %v", err)
	}

	if len(booru.updateCalls) != 0 {
		t.Errorf("update calls = %d, want 0", len(booru.updateCalls))
	}
	if outcome.PostID != 12 || outcome.Version != 4 {
		t.Errorf("outcome = %+v, want post 12 version 4 untouched", outcome)
	}
}

func TestRetagExistingAbortsCooperatively(t *testing.T) {
	p := New(fakeDownloader{}, fakeTagger{}, &fakeTagMaterializer{}, &fakeBooru{})

	_, err := p.RetagExisting(context.Background(), RetagRequest{
		PostID: 12,
		CheckAborted: func(context.Context) (ingestmodel.Status, error) {
			return ingestmodel.StatusStopped, nil
		},
	})
	if err != ErrAborted {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
}
