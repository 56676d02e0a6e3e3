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

// Package httpapi is the control & query API: job creation, listing,
// single/bulk control, deletion, the SSE event stream, and
// tag_existing discovery. Route assembly follows a plain `NewHTTPServer`
// shape (a slice of pre-request middlewares plus one auth middleware
// wrapping a router), as a hand-written chi router since this engine's
// routes aren't OpenAPI-generated.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/boorudev/ingestpipe/internal/booruclient"
	"github.com/boorudev/ingestpipe/internal/controlplane"
	"github.com/boorudev/ingestpipe/internal/eventbus"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
)

// Store is the subset of jobstore.Store the API surface drives; unlike
// internal/workerengine and internal/controlplane, it never claims or
// mutates a job directly (mutation flows through the Controller), so
// ClaimNext/Update/ObserveStatus are intentionally absent.
type Store interface {
	Create(ctx context.Context, draft jobstore.JobDraft) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*ingestmodel.Job, error)
	List(ctx context.Context, filter jobstore.Filter) ([]ingestmodel.Job, string, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ConfigStore is the subset of *config.Store the API drives: the
// discover endpoint authenticates as the caller's own Booru account via
// LoadUserConfig, and the settings route group reads and mutates
// everything else.
type ConfigStore interface {
	LoadUserConfig(ctx context.Context, owner string) (ingestmodel.UserConfig, error)
	UpsertUser(ctx context.Context, cfg ingestmodel.UserConfig) error
	DeleteUser(ctx context.Context, owner string) error
	SetSiteCredential(ctx context.Context, owner, handler, key, value string) error
	LoadGlobalConfig(ctx context.Context) (ingestmodel.GlobalConfig, error)
	UpdateGlobalConfig(ctx context.Context, cfg ingestmodel.GlobalConfig) error
	GetClientPreferences(ctx context.Context, owner string) (json.RawMessage, error)
	SetClientPreferences(ctx context.Context, owner string, prefs json.RawMessage) error
}

// BooruSearcher is the subset of *booruclient.Client the discover
// endpoint drives.
type BooruSearcher interface {
	SearchPostsByTags(ctx context.Context, creds booruclient.Credentials, query string, limit int) ([]booruclient.Post, error)
}

// Server holds every dependency the route handlers close over. One
// instance is shared by every request.
type Server struct {
	store       Store
	ctrl        *controlplane.Controller
	registry    *sitehandler.Registry
	cfg         ConfigStore
	booru       BooruSearcher
	hub         *hub
	scratchRoot string
}

// New returns a Server ready to have its routes mounted with Router.
func New(
	store Store,
	ctrl *controlplane.Controller,
	registry *sitehandler.Registry,
	cfg ConfigStore,
	booru BooruSearcher,
	scratchRoot string,
) *Server {
	return &Server{
		store:       store,
		ctrl:        ctrl,
		registry:    registry,
		cfg:         cfg,
		booru:       booru,
		hub:         newHub(),
		scratchRoot: scratchRoot,
	}
}

// RunEventHub subscribes the server's SSE hub to bus and blocks until
// ctx is canceled; run it in its own goroutine alongside ListenAndServe.
func (s *Server) RunEventHub(ctx context.Context, bus *eventbus.Bus) error {
	return s.hub.Run(ctx, bus)
}

// Router assembles the chi router: CORS as the one pre-request
// middleware, the bearer-token auth middleware next, then one handler
// per route.
func Router(s *Server, authenticator Authenticator, allowedOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin, "http://*"},
		AllowedMethods:   []string{"GET", "OPTIONS", "PATCH", "DELETE", "PUT", "POST"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(requireAuth(authenticator, writeError))

	r.Route("/api", func(api chi.Router) {
		api.Post("/jobs", s.handleCreateURLJob)
		api.Post("/jobs/upload", s.handleCreateUploadJob)
		api.Get("/jobs", s.handleListJobs)
		api.Get("/jobs/{id}", s.handleGetJob)
		api.Post("/jobs/{id}/{action}", s.handleJobControl)
		api.Delete("/jobs/{id}", s.handleDeleteJob)
		api.Post("/jobs/bulk/{action}", s.handleBulkControl)
		api.Get("/events", s.handleEvents)
		api.Post("/tag-jobs/discover", s.handleDiscover)

		api.Get("/settings", s.handleGetSettings)
		api.Put("/settings", s.handleUpdateSettings)
		api.Get("/users/me", s.handleGetOwnUser)
		api.Put("/users/me", s.handleUpsertOwnUser)
		api.Put("/users/me/sites/{handler}", s.handleSetSiteCredentials)
		api.Delete("/users/{owner}", s.handleDeleteUser)
		api.Get("/preferences", s.handleGetPreferences)
		api.Put("/preferences", s.handlePutPreferences)
	})

	return r
}

// ListenAndServe returns a *http.Server bound to addr with a
// conservative header timeout.
func ListenAndServe(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}
}
