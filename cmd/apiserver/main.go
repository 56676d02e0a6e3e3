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

package main

import (
	"cmp"
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/boorudev/ingestpipe/internal/booruclient"
	"github.com/boorudev/ingestpipe/internal/config"
	"github.com/boorudev/ingestpipe/internal/controlplane"
	"github.com/boorudev/ingestpipe/internal/eventbus"
	"github.com/boorudev/ingestpipe/internal/httpapi"
	"github.com/boorudev/ingestpipe/internal/jobstore"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
	"github.com/boorudev/ingestpipe/internal/workerengine"
)

// buildSiteRegistry wires the registered site handlers from
// comma-separated host lists in the environment, falling back to the
// generic yt-dlp handler for anything unrecognized.
func buildSiteRegistry() *sitehandler.Registry {
	registry := sitehandler.NewRegistry(sitehandler.NewGeneric())

	for _, host := range splitNonEmpty(os.Getenv("DIRECTPOST_HOSTS")) {
		registry.Register(sitehandler.NewDirectPost(host))
	}
	for _, host := range splitNonEmpty(os.Getenv("GALLERY_HOSTS")) {
		registry.Register(sitehandler.NewGallery(host))
	}
	for _, pair := range splitNonEmpty(os.Getenv("DUALHOST_PAIRS")) {
		hosts := strings.SplitN(pair, ":", 2)
		if len(hosts) != 2 {
			slog.Warn("ignoring malformed DUALHOST_PAIRS entry", "entry", pair)

			continue
		}
		registry.Register(sitehandler.NewDualHost(hosts[0], hosts[1]))
	}

	return registry
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}

	return strings.Split(raw, ",")
}

func main() {
	ctx := context.Background()

	slog.InfoContext(ctx, "starting api server")

	dbConnString := os.Getenv("DATABASE_URL")
	if dbConnString == "" {
		slog.ErrorContext(ctx, "DATABASE_URL is not set. exiting...")
		os.Exit(1)
	}

	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		slog.ErrorContext(ctx, "ENCRYPTION_KEY is not set. exiting...")
		os.Exit(1)
	}
	key, err := config.ParseKey(encryptionKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse encryption key", "error", err.Error())
		os.Exit(1)
	}
	cryptor, err := config.NewCryptor(key)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build cryptor", "error", err.Error())
		os.Exit(1)
	}

	cfgStore, err := config.NewStore(ctx, dbConnString, cryptor)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create config store", "error", err.Error())
		os.Exit(1)
	}

	jobStore, err := jobstore.NewPostgresStore(ctx, dbConnString)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create job store", "error", err.Error())
		os.Exit(1)
	}

	valkeyAddr := cmp.Or(os.Getenv("VALKEY_ADDR"), "localhost:6379")
	bus, err := eventbus.New(valkeyAddr)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create event bus", "error", err.Error())
		os.Exit(1)
	}

	scratchRoot := cmp.Or(os.Getenv("SCRATCH_ROOT"), "/var/lib/ingestpipe/scratch")

	ctrl := controlplane.New(jobStore, workerengine.BusPublisher{Bus: bus}, cfgStore, scratchRoot)

	registry := buildSiteRegistry()

	booru := booruclient.New(booruclient.WithAdminCredentials(booruclient.Credentials{
		BaseURL:  os.Getenv("ADMIN_BOORU_BASE_URL"),
		Username: os.Getenv("ADMIN_BOORU_USERNAME"),
		Token:    os.Getenv("ADMIN_BOORU_TOKEN"),
	}))

	apiServer := httpapi.New(jobStore, ctrl, registry, cfgStore, booru, scratchRoot)

	go func() {
		if err := apiServer.RunEventHub(ctx, bus); err != nil {
			slog.ErrorContext(ctx, "event hub stopped", "error", err.Error())
		}
	}()

	allowedOrigin := os.Getenv("CORS_ALLOWED_ORIGIN")
	adminToken := os.Getenv("ADMIN_TOKEN")
	authenticator := httpapi.StaticTokenAuthenticator{AdminToken: adminToken}

	router := httpapi.Router(apiServer, authenticator, allowedOrigin)

	addr := cmp.Or(os.Getenv("LISTEN_ADDR"), ":8080")
	srv := httpapi.ListenAndServe(addr, router)

	slog.InfoContext(ctx, "listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		slog.ErrorContext(ctx, "server stopped", "error", err.Error())
		os.Exit(1)
	}
}
