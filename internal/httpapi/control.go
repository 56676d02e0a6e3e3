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
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/boorudev/ingestpipe/internal/controlplane"
)

// controlVerbs maps the {action} path segment of
// POST /jobs/{id}/{action} to the Controller method it invokes.
var controlVerbs = map[string]func(*controlplane.Controller, context.Context, uuid.UUID) error{
	"start":  (*controlplane.Controller).Start,
	"pause":  (*controlplane.Controller).Pause,
	"stop":   (*controlplane.Controller).Stop,
	"resume": (*controlplane.Controller).Resume,
	"retry":  (*controlplane.Controller).Retry,
}

// handleJobControl implements POST /jobs/{id}/{start|pause|stop|resume|retry}.
func (s *Server) handleJobControl(w http.ResponseWriter, r *http.Request) {
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

	verb, ok := controlVerbs[chi.URLParam(r, "action")]
	if !ok {
		writeError(r.Context(), http.StatusNotFound, w, fmt.Errorf("httpapi: unknown control action"))

		return
	}

	if !s.authorizeJob(w, r, caller, id) {
		return
	}

	if err := verb(s.ctrl, r.Context(), id); err != nil {
		writeError(r.Context(), statusForError(err), w, err)

		return
	}

	s.respondWithJob(w, r, id, http.StatusOK)
}

// handleDeleteJob implements DELETE /jobs/{id}.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
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

	if !s.authorizeJob(w, r, caller, id) {
		return
	}

	if err := s.ctrl.Delete(r.Context(), id); err != nil {
		writeError(r.Context(), statusForError(err), w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// authorizeJob fetches id and reports whether caller owns it, writing
// a 404 (never a 403, so ownership doesn't leak job existence) and
// returning false otherwise.
func (s *Server) authorizeJob(w http.ResponseWriter, r *http.Request, caller Caller, id uuid.UUID) bool {
	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), statusForError(err), w, err)

		return false
	}
	if !authorizeJobOwner(caller, job.Owner) {
		writeError(r.Context(), http.StatusNotFound, w, fmt.Errorf("httpapi: job not found"))

		return false
	}

	return true
}

// handleBulkControl implements POST /jobs/bulk/{action}: 202-accepted,
// fire-and-forget.
func (s *Server) handleBulkControl(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	action := chi.URLParam(r, "action")
	if _, known := controlVerbs[action]; !known && action != "delete" {
		writeError(r.Context(), http.StatusNotFound, w, fmt.Errorf("httpapi: unknown bulk action"))

		return
	}

	var req bulkJobsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: decode request: %w", err))

		return
	}

	ids := make([]uuid.UUID, 0, len(req.JobIDs))
	for _, raw := range req.JobIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: invalid job id %q: %w", raw, err))

			return
		}
		if s.authorizeJobSilent(r, caller, id) {
			ids = append(ids, id)
		}
	}

	s.ctrl.Bulk(action, ids)

	writeJSON(w, http.StatusAccepted, bulkJobsResponse{Accepted: len(ids)})
}

// authorizeJobSilent is authorizeJob without writing a response: a bulk
// request silently drops ids the caller doesn't own rather than
// failing the whole batch.
func (s *Server) authorizeJobSilent(r *http.Request, caller Caller, id uuid.UUID) bool {
	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		return false
	}

	return authorizeJobOwner(caller, job.Owner)
}
