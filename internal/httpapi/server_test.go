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

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/boorudev/ingestpipe/internal/booruclient"
	"github.com/boorudev/ingestpipe/internal/config"
	"github.com/boorudev/ingestpipe/internal/controlplane"
	"github.com/boorudev/ingestpipe/internal/eventbus"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
)

type fakePublisher struct{}

func (fakePublisher) PublishJobUpdated(context.Context, eventbus.JobUpdated) error { return nil }

// fakeConfigStore satisfies both httpapi.ConfigStore and
// controlplane.GlobalConfigLoader; maps must be initialized by the
// caller when a test exercises the mutating routes.
type fakeConfigStore struct {
	users  map[string]ingestmodel.UserConfig
	global *ingestmodel.GlobalConfig
	prefs  map[string]json.RawMessage
}

func (f fakeConfigStore) LoadUserConfig(_ context.Context, owner string) (ingestmodel.UserConfig, error) {
	cfg, ok := f.users[owner]
	if !ok {
		return ingestmodel.UserConfig{}, config.ErrNotFound
	}

	return cfg, nil
}

func (f fakeConfigStore) UpsertUser(_ context.Context, cfg ingestmodel.UserConfig) error {
	f.users[cfg.Owner] = cfg

	return nil
}

func (f fakeConfigStore) DeleteUser(_ context.Context, owner string) error {
	if _, ok := f.users[owner]; !ok {
		return config.ErrNotFound
	}
	delete(f.users, owner)

	return nil
}

func (f fakeConfigStore) SetSiteCredential(_ context.Context, owner, handler, key, value string) error {
	cfg := f.users[owner]
	if cfg.SiteCredentials == nil {
		cfg.SiteCredentials = map[string]map[string]string{}
	}
	if cfg.SiteCredentials[handler] == nil {
		cfg.SiteCredentials[handler] = map[string]string{}
	}
	cfg.SiteCredentials[handler][key] = value
	f.users[owner] = cfg

	return nil
}

func (f fakeConfigStore) LoadGlobalConfig(context.Context) (ingestmodel.GlobalConfig, error) {
	if f.global == nil {
		return ingestmodel.GlobalConfig{}, nil
	}

	return *f.global, nil
}

func (f fakeConfigStore) UpdateGlobalConfig(_ context.Context, cfg ingestmodel.GlobalConfig) error {
	*f.global = cfg

	return nil
}

func (f fakeConfigStore) GetClientPreferences(_ context.Context, owner string) (json.RawMessage, error) {
	prefs, ok := f.prefs[owner]
	if !ok {
		return json.RawMessage("{}"), nil
	}

	return prefs, nil
}

func (f fakeConfigStore) SetClientPreferences(_ context.Context, owner string, prefs json.RawMessage) error {
	f.prefs[owner] = prefs

	return nil
}

type fakeBooru struct {
	posts []booruclient.Post
}

func (f fakeBooru) SearchPostsByTags(context.Context, booruclient.Credentials, string, int) ([]booruclient.Post, error) {
	return f.posts, nil
}

func newTestServer(t *testing.T) (*Server, *jobstore.MemStore) {
	t.Helper()

	store := jobstore.NewMemStore()
	cfg := fakeConfigStore{
		users:  map[string]ingestmodel.UserConfig{"alice": {Owner: "alice", BooruBaseURL: "https://booru.test"}},
		global: &ingestmodel.GlobalConfig{},
		prefs:  map[string]json.RawMessage{},
	}
	ctrl := controlplane.New(store, fakePublisher{}, cfg, t.TempDir())
	registry := sitehandler.NewRegistry(sitehandler.NewGeneric())
	registry.Register(sitehandler.NewDirectPost("example.com"))

	s := New(store, ctrl, registry, cfg, fakeBooru{posts: []booruclient.Post{{ID: 7, Version: 1}}}, t.TempDir())

	return s, store
}

func newRequest(t *testing.T, method, path, token string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

func TestCreateURLJobRejectsBareDomainForRegisteredHandler(t *testing.T) {
	s, _ := newTestServer(t)
	router := Router(s, StaticTokenAuthenticator{}, "*")

	req := newRequest(t, http.MethodPost, "/api/jobs", "alice", createURLJobRequest{URL: "https://example.com/"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateAndGetURLJobRoundTrips(t *testing.T) {
	s, _ := newTestServer(t)
	router := Router(s, StaticTokenAuthenticator{}, "*")

	req := newRequest(t, http.MethodPost, "/api/jobs", "alice", createURLJobRequest{URL: "https://example.com/post/123"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201; body=%s", rec.Code, rec.Body.String())
	}

	var created jobDTO
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Owner != "alice" || created.Status != string(ingestmodel.StatusPending) {
		t.Fatalf("created = %+v", created)
	}

	getReq := newRequest(t, http.MethodGet, "/api/jobs/"+created.ID, "alice", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", getRec.Code)
	}

	otherReq := newRequest(t, http.MethodGet, "/api/jobs/"+created.ID, "mallory", nil)
	otherRec := httptest.NewRecorder()
	router.ServeHTTP(otherRec, otherReq)
	if otherRec.Code != http.StatusNotFound {
		t.Fatalf("cross-owner get status = %d, want 404", otherRec.Code)
	}
}

func TestStartControlActionPublishesWithoutError(t *testing.T) {
	s, store := newTestServer(t)
	router := Router(s, StaticTokenAuthenticator{}, "*")

	id, err := store.Create(context.Background(), jobstore.JobDraft{JobType: ingestmodel.JobTypeURL, URL: "https://example.com/post/1", Owner: "alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := newRequest(t, http.MethodPost, "/api/jobs/"+id.String()+"/start", "alice", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
}

func TestBulkControlSilentlyDropsJobsNotOwnedByCaller(t *testing.T) {
	s, store := newTestServer(t)
	router := Router(s, StaticTokenAuthenticator{}, "*")

	mine, _ := store.Create(context.Background(), jobstore.JobDraft{JobType: ingestmodel.JobTypeURL, URL: "https://example.com/post/1", Owner: "alice"})
	theirs, _ := store.Create(context.Background(), jobstore.JobDraft{JobType: ingestmodel.JobTypeURL, URL: "https://example.com/post/2", Owner: "mallory"})

	req := newRequest(t, http.MethodPost, "/api/jobs/bulk/stop", "alice", bulkJobsRequest{JobIDs: []string{mine.String(), theirs.String()}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body=%s", rec.Code, rec.Body.String())
	}

	var resp bulkJobsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Accepted != 1 {
		t.Fatalf("accepted = %d, want 1", resp.Accepted)
	}
}

func TestDiscoverCreatesOneTagExistingJobPerMatch(t *testing.T) {
	s, store := newTestServer(t)
	router := Router(s, StaticTokenAuthenticator{}, "*")

	req := newRequest(t, http.MethodPost, "/api/tag-jobs/discover", "alice", discoverRequest{Query: "tag-count:..2", Tags: []string{"tagme"}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}

	var resp discoverResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobsCreated != 1 {
		t.Fatalf("jobs created = %d, want 1", resp.JobsCreated)
	}

	jobs, _, _, err := store.List(context.Background(), jobstore.Filter{Owner: "alice"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobType != ingestmodel.JobTypeTagExisting {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestMissingAuthHeaderRejected(t *testing.T) {
	s, _ := newTestServer(t)
	router := Router(s, StaticTokenAuthenticator{}, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateUploadJobStagesFileForWorker(t *testing.T) {
	s, _ := newTestServer(t)
	router := Router(s, StaticTokenAuthenticator{}, "*")

	var body bytes.Buffer
	writer := multipartWriter(t, &body, "hello.png", strings.NewReader("fake-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/upload", &body)
	req.Header.Set("Authorization", "Bearer alice")
	req.Header.Set("Content-Type", writer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body=%s", rec.Code, rec.Body.String())
	}
}

// multipartWriter writes a single "content" file field into body and
// returns the multipart Content-Type header value.
func multipartWriter(t *testing.T, body *bytes.Buffer, filename string, content io.Reader) string {
	t.Helper()

	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("content", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		t.Fatalf("copy content: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	return w.FormDataContentType()
}
