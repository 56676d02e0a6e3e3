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

package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
)

func TestDirectDownloadWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("fake-jpeg-bytes"))
	}))
	defer srv.Close()

	destDir := t.TempDir()
	e := New(testConfig(), fakeRunner{})
	handler := sitehandler.NewDirectPost("ignored")

	media := ingestmodel.ExtractedMedia{PageURL: srv.URL + "/page", DirectURL: srv.URL + "/image.jpg"}
	result, err := e.Download(context.Background(), media, destDir, handler, nil)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(result.Files) != 1 {
		t.Fatalf("want 1 file, got %d", len(result.Files))
	}

	data, err := os.ReadFile(result.Files[0])
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "fake-jpeg-bytes" {
		t.Fatalf("unexpected file contents: %q", data)
	}
}

func TestDirectDownloadRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, maxDirectDownloadBytes+1)
		w.Write(buf)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	e := New(testConfig(), fakeRunner{})
	handler := sitehandler.NewDirectPost("ignored")

	media := ingestmodel.ExtractedMedia{PageURL: srv.URL + "/page", DirectURL: srv.URL + "/image.jpg"}
	_, err := e.Download(context.Background(), media, destDir, handler, nil)
	if err == nil {
		t.Fatal("expected an error for an oversized body")
	}
}

func TestUniqueFilenameResolvesCollisions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "media.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	got := uniqueFilename(dir, "media.jpg")
	if got != "media_1.jpg" {
		t.Fatalf("got %q, want media_1.jpg", got)
	}
}

func TestCollectDestDirMergesSidecarsAndDropsText(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "photo.json"), []byte(`{"artist": "someone"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "photo.txt"), []byte("tweet text"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := collectDestDir(dir)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(result.Files) != 1 {
		t.Fatalf("want 1 media file, got %d: %v", len(result.Files), result.Files)
	}
	if result.Metadata["artist"] != "someone" {
		t.Fatalf("expected merged sidecar metadata, got %+v", result.Metadata)
	}
}
