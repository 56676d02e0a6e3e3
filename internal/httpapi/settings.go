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
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/boorudev/ingestpipe/internal/config"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

// ErrAdminOnly is returned for settings routes that mutate tenant-wide
// state when the caller lacks the admin escapement.
var ErrAdminOnly = errors.New("httpapi: admin access required")

// maxPreferencesBytes bounds the opaque client-preference blob; it is
// stored verbatim in a jsonb column and never read by the pipeline.
const maxPreferencesBytes = 64 * 1024

// globalSettingsDTO is the wire shape of ingestmodel.GlobalConfig.
// Durations travel as whole seconds, matching the column names they are
// stored under.
type globalSettingsDTO struct {
	WD14Enabled             bool                       `json:"wd14_enabled"`
	WD14ConfidenceThreshold float64                    `json:"wd14_confidence_threshold"`
	WD14MaxTags             int                        `json:"wd14_max_tags"`
	WD14Model               string                     `json:"wd14_model"`
	WorkerConcurrency       int                        `json:"worker_concurrency"`
	DownloadTimeoutSeconds  int                        `json:"download_timeout_seconds"`
	VideoTimeoutSeconds     int                        `json:"video_timeout_seconds"`
	MaxRetries              int                        `json:"max_retries"`
	RetryDelaySeconds       int                        `json:"retry_delay_seconds"`
	CategoryMapping         ingestmodel.CategoryMapping `json:"category_mapping"`
}

func toGlobalSettingsDTO(cfg ingestmodel.GlobalConfig) globalSettingsDTO {
	mapping := cfg.CategoryMapping
	if mapping == nil {
		mapping = ingestmodel.CategoryMapping{}
	}

	return globalSettingsDTO{
		WD14Enabled:             cfg.WD14Enabled,
		WD14ConfidenceThreshold: cfg.WD14ConfidenceThreshold,
		WD14MaxTags:             cfg.WD14MaxTags,
		WD14Model:               cfg.WD14Model,
		WorkerConcurrency:       cfg.WorkerConcurrency,
		DownloadTimeoutSeconds:  int(cfg.DownloadTimeout / time.Second),
		VideoTimeoutSeconds:     int(cfg.VideoTimeout / time.Second),
		MaxRetries:              cfg.MaxRetries,
		RetryDelaySeconds:       int(cfg.RetryDelay / time.Second),
		CategoryMapping:         mapping,
	}
}

func (d globalSettingsDTO) toModel() ingestmodel.GlobalConfig {
	return ingestmodel.GlobalConfig{
		WD14Enabled:             d.WD14Enabled,
		WD14ConfidenceThreshold: d.WD14ConfidenceThreshold,
		WD14MaxTags:             d.WD14MaxTags,
		WD14Model:               d.WD14Model,
		WorkerConcurrency:       d.WorkerConcurrency,
		DownloadTimeout:         time.Duration(d.DownloadTimeoutSeconds) * time.Second,
		VideoTimeout:            time.Duration(d.VideoTimeoutSeconds) * time.Second,
		MaxRetries:              d.MaxRetries,
		RetryDelay:              time.Duration(d.RetryDelaySeconds) * time.Second,
		CategoryMapping:         d.CategoryMapping,
	}
}

// userDTO is GET /users/me's body: the caller's Booru account minus the
// token, plus which site-credential keys are on file per handler. The
// decrypted values never leave the config store through this route.
type userDTO struct {
	Owner         string              `json:"owner"`
	BooruBaseURL  string              `json:"booru_base_url"`
	BooruUsername string              `json:"booru_username"`
	SiteKeys      map[string][]string `json:"site_credential_keys,omitempty"`
}

// upsertUserRequest is PUT /users/me's body.
type upsertUserRequest struct {
	BooruBaseURL  string `json:"booru_base_url"`
	BooruUsername string `json:"booru_username"`
	BooruToken    string `json:"booru_token"`
}

// handleGetSettings implements GET /settings (admin only).
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok || !caller.Admin {
		writeError(r.Context(), http.StatusForbidden, w, ErrAdminOnly)

		return
	}

	cfg, err := s.cfg.LoadGlobalConfig(r.Context())
	if err != nil {
		writeError(r.Context(), settingsStatusForError(err), w, err)

		return
	}

	writeJSON(w, http.StatusOK, toGlobalSettingsDTO(cfg))
}

// handleUpdateSettings implements PUT /settings (admin only). The next
// job a worker claims sees the new values; in-flight jobs keep what
// they loaded at start.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok || !caller.Admin {
		writeError(r.Context(), http.StatusForbidden, w, ErrAdminOnly)

		return
	}

	var req globalSettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: decode settings: %w", err))

		return
	}
	if err := validateSettings(req); err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, err)

		return
	}

	if err := s.cfg.UpdateGlobalConfig(r.Context(), req.toModel()); err != nil {
		writeError(r.Context(), settingsStatusForError(err), w, err)

		return
	}

	writeJSON(w, http.StatusOK, req)
}

// validateSettings rejects values the worker engine cannot run with.
func validateSettings(d globalSettingsDTO) error {
	switch {
	case d.WorkerConcurrency < 1:
		return errors.New("httpapi: worker_concurrency must be at least 1")
	case d.WD14ConfidenceThreshold < 0 || d.WD14ConfidenceThreshold > 1:
		return errors.New("httpapi: wd14_confidence_threshold must be within [0, 1]")
	case d.WD14MaxTags < 1:
		return errors.New("httpapi: wd14_max_tags must be at least 1")
	case d.DownloadTimeoutSeconds < 1 || d.VideoTimeoutSeconds < 1:
		return errors.New("httpapi: timeouts must be at least 1 second")
	case d.MaxRetries < 0 || d.RetryDelaySeconds < 0:
		return errors.New("httpapi: retry settings must not be negative")
	}

	return nil
}

// handleGetOwnUser implements GET /users/me.
func (s *Server) handleGetOwnUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	cfg, err := s.cfg.LoadUserConfig(r.Context(), caller.Owner)
	if err != nil {
		writeError(r.Context(), settingsStatusForError(err), w, err)

		return
	}

	dto := userDTO{
		Owner:         cfg.Owner,
		BooruBaseURL:  cfg.BooruBaseURL,
		BooruUsername: cfg.BooruUsername,
	}
	if len(cfg.SiteCredentials) > 0 {
		dto.SiteKeys = make(map[string][]string, len(cfg.SiteCredentials))
		for handler, creds := range cfg.SiteCredentials {
			for key := range creds {
				dto.SiteKeys[handler] = append(dto.SiteKeys[handler], key)
			}
		}
	}

	writeJSON(w, http.StatusOK, dto)
}

// handleUpsertOwnUser implements PUT /users/me. The owner key is always
// the caller's own; there is no admin route to write another tenant's
// credentials.
func (s *Server) handleUpsertOwnUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: decode user: %w", err))

		return
	}
	if req.BooruBaseURL == "" || req.BooruUsername == "" || req.BooruToken == "" {
		writeError(r.Context(), http.StatusBadRequest, w,
			errors.New("httpapi: booru_base_url, booru_username and booru_token are required"))

		return
	}

	err := s.cfg.UpsertUser(r.Context(), ingestmodel.UserConfig{
		Owner:         caller.Owner,
		BooruBaseURL:  req.BooruBaseURL,
		BooruUsername: req.BooruUsername,
		BooruToken:    req.BooruToken,
	})
	if err != nil {
		writeError(r.Context(), settingsStatusForError(err), w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSetSiteCredentials implements PUT /users/me/sites/{handler}:
// the body is a flat key -> value object matching the handler's
// declared CredentialKeys. Unknown handler names are accepted — a
// credential for an unregistered handler is inert until that handler
// is configured.
func (s *Server) handleSetSiteCredentials(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	handler := chi.URLParam(r, "handler")

	var creds map[string]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: decode credentials: %w", err))

		return
	}
	if len(creds) == 0 {
		writeError(r.Context(), http.StatusBadRequest, w, errors.New("httpapi: no credentials supplied"))

		return
	}

	for key, value := range creds {
		if err := s.cfg.SetSiteCredential(r.Context(), caller.Owner, handler, key, value); err != nil {
			writeError(r.Context(), settingsStatusForError(err), w, err)

			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteUser implements DELETE /users/{owner}: a caller may
// delete their own credentials, an admin anyone's. Site credentials
// and client preferences cascade in the schema.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	owner := chi.URLParam(r, "owner")
	if !authorizeJobOwner(caller, owner) {
		writeError(r.Context(), http.StatusForbidden, w, ErrAdminOnly)

		return
	}

	if err := s.cfg.DeleteUser(r.Context(), owner); err != nil {
		writeError(r.Context(), settingsStatusForError(err), w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetPreferences implements GET /preferences.
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	prefs, err := s.cfg.GetClientPreferences(r.Context(), caller.Owner)
	if err != nil {
		writeError(r.Context(), settingsStatusForError(err), w, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(prefs)
}

// handlePutPreferences implements PUT /preferences: the body is stored
// verbatim (bounded, validated as JSON) and round-tripped to GET.
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(r.Context(), http.StatusUnauthorized, w, ErrMissingAuthHeader)

		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPreferencesBytes))
	if err != nil {
		writeError(r.Context(), http.StatusBadRequest, w, fmt.Errorf("httpapi: read preferences: %w", err))

		return
	}
	if !json.Valid(body) {
		writeError(r.Context(), http.StatusBadRequest, w, errors.New("httpapi: preferences must be valid JSON"))

		return
	}

	if err := s.cfg.SetClientPreferences(r.Context(), caller.Owner, body); err != nil {
		writeError(r.Context(), settingsStatusForError(err), w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// settingsStatusForError maps config-store errors to a status,
// deferring to the shared mapping for everything else.
func settingsStatusForError(err error) int {
	if errors.Is(err, config.ErrNotFound) {
		return http.StatusNotFound
	}

	return statusForError(err)
}
