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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
)

// maxUploadBytes bounds a multipart job upload body.
const maxUploadBytes = 200 * 1024 * 1024

// handleCreateURLJob implements POST /jobs.
func (s *Server) handleCreateURLJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	var req createURLJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: decode request: %w", err))

		return
	}

	if err := validateJobURL(s.registry, req.URL); err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, err)

		return
	}
	if req.Safety != "" && !ingestmodel.Safety(req.Safety).Valid() {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: unknown safety %q", req.Safety))

		return
	}

	id, err := s.store.Create(r.Context(), jobstore.JobDraft{
		JobType:        ingestmodel.JobTypeURL,
		URL:            req.URL,
		SourceOverride: req.Source,
		InitialTags:    req.Tags,
		Safety:         ingestmodel.Safety(req.Safety),
		SkipTagging:    req.SkipTagging,
		Owner:          caller.Owner,
	})
	if err != nil {
		writeError(r.Context(), statusForError(err), w, err)

		return
	}

	s.respondWithJob(w, r, id, http.StatusCreated)
}

// handleCreateUploadJob implements POST /jobs/upload: a multipart body
// carrying the media under field "content" plus the same optional
// fields as the URL variant.
func (s *Server) handleCreateUploadJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: parse upload: %w", err))

		return
	}

	file, header, err := r.FormFile("content")
	if err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: missing upload field \"content\": %w", err))

		return
	}
	defer file.Close()

	if v := r.FormValue("safety"); v != "" && !ingestmodel.Safety(v).Valid() {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: unknown safety %q", v))

		return
	}
	skipTagging, _ := strconv.ParseBool(r.FormValue("skip_tagging"))

	id, err := s.store.Create(r.Context(), jobstore.JobDraft{
		JobType:          ingestmodel.JobTypeFile,
		OriginalFilename: filepath.Base(header.Filename),
		SourceOverride:   r.FormValue("source"),
		InitialTags:      splitTags(r.FormValue("tags")),
		Safety:           ingestmodel.Safety(r.FormValue("safety")),
		SkipTagging:      skipTagging,
		Owner:            caller.Owner,
	})
	if err != nil {
		writeError(r.Context(), statusForError(err), w, err)

		return
	}

	if err := s.stageUpload(id, header.Filename, file); err != nil {
		_ = s.store.Delete(r.Context(), id)
		writeError(r.Context(), http.StatusInternalServerError, w, err)

		return
	}

	s.respondWithJob(w, r, id, http.StatusCreated)
}

// stageUpload writes the uploaded file to the scratch-directory
// convention internal/workerengine.uploadedFilePath expects:
// {scratchRoot}/{job_id}/upload/{originalFilename}.
func (s *Server) stageUpload(id uuid.UUID, filename string, src io.Reader) error {
	dir := filepath.Join(s.scratchRoot, id.String(), "upload")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("httpapi: create upload dir: %w", err)
	}

	dst, err := os.Create(filepath.Join(dir, filepath.Base(filename)))
	if err != nil {
		return fmt.Errorf("httpapi: create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("httpapi: write upload file: %w", err)
	}

	return nil
}

// respondWithJob fetches id fresh from the store and writes it as the
// response body; Create doesn't return the full row, and the caller
// expects one back.
func (s *Server) respondWithJob(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), statusForError(err), w, err)

		return
	}

	writeJSON(w, status, toJobDTO(*job))
}

// handleListJobs implements GET /jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	q := r.URL.Query()
	filter := jobstore.Filter{
		Owner:     ownerFilter(caller, q.Get("owner")),
		PageToken: q.Get("page_token"),
	}
	if size, err := strconv.Atoi(q.Get("page_size")); err == nil && size > 0 {
		filter.PageSize = size
	}
	if statusParam := q.Get("status"); statusParam != "" {
		st := ingestmodel.Status(statusParam)
		filter.Status = &st
	}
	if wasMergeParam := q.Get("was_merge"); wasMergeParam != "" {
		wasMerge, err := strconv.ParseBool(wasMergeParam)
		if err == nil {
			filter.WasMerge = &wasMerge
		}
	}

	jobs, nextToken, total, err := s.store.List(r.Context(), filter)
	if err != nil {
		writeError(r.Context(), statusForError(err), w, err)

		return
	}

	dtos := make([]jobDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = toJobDTO(j)
	}

	writeJSON(w, http.StatusOK, listJobsResponse{Jobs: dtos, NextPageToken: nextToken, Total: total})
}

// handleGetJob implements GET /jobs/{id}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: invalid job id: %w", err))

		return
	}

	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), statusForError(err), w, err)

		return
	}
	if !authorizeJobOwner(caller, job.Owner) {
		writeError(r.Context(), http.StatusNotFound, w, jobstore.ErrNotFound)

		return
	}

	writeJSON(w, http.StatusOK, toJobDTO(*job))
}

// splitTags splits a form-encoded, whitespace-separated tag list.
func splitTags(raw string) []string {
	return strings.Fields(raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
