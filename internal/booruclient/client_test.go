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

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/boorudev/ingestpipe/internal/tagcache"
)

func testCreds(srv *httptest.Server) Credentials {
	return Credentials{BaseURL: srv.URL, Username: "alice", Token: "tok"}
}

func TestUploadSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/posts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Post{ID: 42, Version: 1, Tags: []string{"a"}})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "x.jpg")
	if err := os.WriteFile(path, []byte("fake-jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := New()
	post, err := c.Upload(context.Background(), testCreds(srv), path, []string{"a"}, "safe", "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if post.ID != 42 {
		t.Errorf("ID = %d, want 42", post.ID)
	}
}

func TestUploadDuplicateContentMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "PostAlreadyUploadedError"})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "x.jpg")
	if err := os.WriteFile(path, []byte("dup"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := New()
	_, err := c.Upload(context.Background(), testCreds(srv), path, nil, "safe", "")
	if err != ErrDuplicateContent {
		t.Fatalf("err = %v, want ErrDuplicateContent", err)
	}
}

func TestGetPostNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New()
	_, err := c.GetPost(context.Background(), testCreds(srv), 7)
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePostVersionConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := New()
	src := "https://example.com/1"
	_, err := c.UpdatePost(context.Background(), testCreds(srv), 7, 3, UpdatePostRequest{Source: &src})
	if err != ErrVersionConflict {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
}

func TestReverseSearchParsesExactAndSimilar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"exactPost":    Post{ID: 1, Version: 1},
			"similarPosts": []Post{{ID: 2, Version: 1}},
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "x.png")
	if err := os.WriteFile(path, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := New()
	result, err := c.ReverseSearch(context.Background(), testCreds(srv), path)
	if err != nil {
		t.Fatalf("ReverseSearch: %v", err)
	}
	if result.Exact == nil || result.Exact.ID != 1 {
		t.Errorf("Exact = %+v, want ID 1", result.Exact)
	}
	if len(result.Similar) != 1 || result.Similar[0].ID != 2 {
		t.Errorf("Similar = %+v, want one post with ID 2", result.Similar)
	}
}

func TestCreateTagAlreadyExistsSatisfiesTagcacheSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "TagAlreadyExistsError"})
	}))
	defer srv.Close()

	c := New(WithAdminCredentials(testCreds(srv)))
	err := c.CreateTag(context.Background(), "tentacles", "general")
	if err != tagcache.ErrAlreadyExists {
		t.Fatalf("err = %v, want tagcache.ErrAlreadyExists", err)
	}
}

func TestGetTagReturnsCategoryAndVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tagWire{Category: "character", Version: 5})
	}))
	defer srv.Close()

	c := New(WithAdminCredentials(testCreds(srv)))
	tag, err := c.GetTag(context.Background(), "hatsune_miku")
	if err != nil {
		t.Fatalf("GetTag: %v", err)
	}
	if tag.Category != "character" || tag.Version != 5 {
		t.Errorf("tag = %+v, want category=character version=5", tag)
	}
}

func TestSearchByChecksumReturnsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []Post{{ID: 9, Version: 1}}})
	}))
	defer srv.Close()

	c := New()
	posts, err := c.SearchByChecksum(context.Background(), testCreds(srv), "deadbeef")
	if err != nil {
		t.Fatalf("SearchByChecksum: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != 9 {
		t.Errorf("posts = %+v, want one post with ID 9", posts)
	}
}

func TestSearchPostsByTagsReturnsResults(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []Post{{ID: 42, Version: 3}}})
	}))
	defer srv.Close()

	c := New()
	posts, err := c.SearchPostsByTags(context.Background(), testCreds(srv), "tag-count:3.. rating:safe", 50)
	if err != nil {
		t.Fatalf("SearchPostsByTags: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != 42 {
		t.Errorf("posts = %+v, want one post with ID 42", posts)
	}
	if gotQuery != "tag-count:3.. rating:safe" {
		t.Errorf("query = %q, want %q", gotQuery, "tag-count:3.. rating:safe")
	}
}
