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
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/boorudev/ingestpipe/internal/booruclient"
	"github.com/boorudev/ingestpipe/internal/config"
	"github.com/boorudev/ingestpipe/internal/eventbus"
	"github.com/boorudev/ingestpipe/internal/extractor"
	"github.com/boorudev/ingestpipe/internal/jobstore"
	"github.com/boorudev/ingestpipe/internal/pipeline"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
	"github.com/boorudev/ingestpipe/internal/tagcache"
	"github.com/boorudev/ingestpipe/internal/tagger"
	"github.com/boorudev/ingestpipe/internal/tagger/wd14"
	"github.com/boorudev/ingestpipe/internal/workerengine"
)

// buildSiteRegistry mirrors cmd/apiserver's registry construction; the
// worker needs the same handler set since it drives
// Enumerate/Download, not just URL validation.
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

func parseEnvVarDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.ErrorContext(context.Background(), "unable to parse duration", "key", key, "value", raw)
		os.Exit(1)
	}

	return d
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.InfoContext(ctx, "starting worker")

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

	globalCfg, err := cfgStore.LoadGlobalConfig(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load global config", "error", err.Error())
		os.Exit(1)
	}

	registry := buildSiteRegistry()

	ex := extractor.New(extractor.Config{
		ResolverPath:   cmp.Or(os.Getenv("RESOLVER_PATH"), "gallery-dl"),
		MetadataPath:   cmp.Or(os.Getenv("METADATA_PATH"), "gallery-dl"),
		YtDlpPath:      cmp.Or(os.Getenv("YTDLP_PATH"), "yt-dlp"),
		ResolveTimeout: parseEnvVarDuration("RESOLVE_TIMEOUT", 30*time.Second),
		DumpTimeout:    globalCfg.DownloadTimeout,
	}, extractor.ExecRunner{})

	booru := booruclient.New(
		booruclient.WithTimeout(cmp.Or(globalCfg.DownloadTimeout, 60*time.Second)),
		booruclient.WithAdminCredentials(booruclient.Credentials{
			BaseURL:  os.Getenv("ADMIN_BOORU_BASE_URL"),
			Username: os.Getenv("ADMIN_BOORU_USERNAME"),
			Token:    os.Getenv("ADMIN_BOORU_TOKEN"),
		}),
	)

	tagCache := tagcache.New(booru, jobStore)
	if err := tagCache.Warm(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to warm tag cache", "error", err.Error())
		os.Exit(1)
	}

	// internal/pipeline checks GlobalConfig.WD14Enabled before ever
	// calling TagImage/TagVideo, so the loader only needs to exist, not
	// branch on that flag itself.
	wd14ScriptPath := cmp.Or(os.Getenv("WD14_SCRIPT_PATH"), "wd14_infer.py")
	wd14LoadTimeout := parseEnvVarDuration("WD14_LOAD_TIMEOUT", 60*time.Second)
	modelLoad := func(context.Context) (tagger.Model, error) {
		return wd14.Load(wd14.ExecRunner{}, wd14ScriptPath, globalCfg.WD14Model, wd14LoadTimeout), nil
	}

	frameExtractor := tagger.FFmpegFrameExtractor{
		BinaryPath: cmp.Or(os.Getenv("FFMPEG_PATH"), "ffmpeg"),
		Timeout:    globalCfg.VideoTimeout,
	}

	tagr := tagger.New(ctx, tagger.Config{
		ConfidenceThreshold: globalCfg.WD14ConfidenceThreshold,
		MaxTags:             globalCfg.WD14MaxTags,
		Concurrency:         globalCfg.WorkerConcurrency,
	}, modelLoad, frameExtractor)

	pipe := pipeline.New(workerengine.NewFileAwareDownloader(ex), tagr, tagCache, booru)

	scratchRoot := cmp.Or(os.Getenv("SCRATCH_ROOT"), "/var/lib/ingestpipe/scratch")

	engine := workerengine.New(
		jobStore,
		cfgStore,
		ex,
		registry,
		pipe,
		workerengine.BusPublisher{Bus: bus},
		scratchRoot,
		globalCfg.WorkerConcurrency,
	)

	engine.Run(ctx)

	slog.InfoContext(ctx, "worker stopped")
}
