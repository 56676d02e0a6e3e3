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

// Package pipeline implements the per-media processing stages of a
// job: download, tag assembly, category resolution, tag
// materialization, source building, upload-or-merge, and (once every
// media item in a job has been processed) relation linking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/boorudev/ingestpipe/internal/booruclient"
	"github.com/boorudev/ingestpipe/internal/extractor"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
	"github.com/boorudev/ingestpipe/internal/tagcache"
	"github.com/boorudev/ingestpipe/internal/tagger"
)

// ErrAborted is returned by ProcessMedia when the cooperative
// cancellation check reports the job has been paused or stopped. The
// caller must stop processing without marking the job failed.
var ErrAborted = errors.New("pipeline: aborted by status change")

// BooruUploader is the subset of booruclient.Client the pipeline drives.
type BooruUploader interface {
	Upload(ctx context.Context, creds booruclient.Credentials, path string, tags []string, safety, source string) (*booruclient.Post, error)
	ReverseSearch(ctx context.Context, creds booruclient.Credentials, path string) (*booruclient.ReverseSearchResult, error)
	GetPost(ctx context.Context, creds booruclient.Credentials, id int64) (*booruclient.Post, error)
	UpdatePost(ctx context.Context, creds booruclient.Credentials, id int64, version int, update booruclient.UpdatePostRequest) (*booruclient.Post, error)
}

// MediaDownloader is the subset of *extractor.Extractor the pipeline
// drives.
type MediaDownloader interface {
	Download(ctx context.Context, media ingestmodel.ExtractedMedia, destDir string, handler sitehandler.Handler, userCreds map[string]string) (extractor.Downloaded, error)
}

// MediaTagger is the subset of *tagger.Tagger the pipeline drives.
type MediaTagger interface {
	TagImage(ctx context.Context, path string) (tagger.TagResult, error)
	TagVideo(ctx context.Context, path string, sceneThreshold float64, maxFrames int, minFrameRatio float64) (tagger.TagResult, error)
}

// TagMaterializer is the subset of *tagcache.Cache the pipeline drives.
type TagMaterializer interface {
	EnsureBatch(ctx context.Context, pairs []tagcache.Pair) error
}

// StatusChecker lets ProcessMedia implement the cooperative cancellation
// contract without depending on jobstore directly.
type StatusChecker func(ctx context.Context) (ingestmodel.Status, error)

// StageReporter is notified as ProcessMedia crosses the tagging and
// uploading stage boundaries. It is advisory only: ProcessMedia does
// not fail or alter its behavior if the reporter does nothing useful
// with the notification, so callers that don't care about progress can
// leave it nil.
type StageReporter func(ctx context.Context, status ingestmodel.Status)

func reportStage(ctx context.Context, report StageReporter, status ingestmodel.Status) {
	if report != nil {
		report(ctx, status)
	}
}

// Pipeline wires the stage dependencies together; one Pipeline instance
// is shared by every worker in the process.
type Pipeline struct {
	downloader MediaDownloader
	tagger     MediaTagger
	tagCache   TagMaterializer
	booru      BooruUploader
}

// New returns a Pipeline driving the given stage dependencies.
func New(downloader MediaDownloader, tagr MediaTagger, tagCache TagMaterializer, booru BooruUploader) *Pipeline {
	return &Pipeline{downloader: downloader, tagger: tagr, tagCache: tagCache, booru: booru}
}

// MediaRequest bundles everything ProcessMedia needs for one media item.
type MediaRequest struct {
	Media          ingestmodel.ExtractedMedia
	Handler        sitehandler.Handler
	ScratchDir     string
	InitialTags    []string
	SourceOverride string
	Safety         ingestmodel.Safety
	SkipTagging    bool
	GlobalCfg      ingestmodel.GlobalConfig
	UserCfg        ingestmodel.UserConfig
	CheckAborted   StatusChecker
	ReportStage    StageReporter
}

// Outcome reports what happened to one media item.
type Outcome struct {
	Skipped        bool
	SkipReason     string
	PostID         int64
	Version        int
	WasMerge       bool
	TagsApplied    []string
	TagsFromSource []string
	TagsFromAI     []string
}

// abortIfNeeded checks the job's live status and returns ErrAborted if
// it has moved to paused or stopped since the worker claimed it.
func abortIfNeeded(ctx context.Context, check StatusChecker) error {
	if check == nil {
		return nil
	}
	status, err := check(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: check status: %w", err)
	}
	if status == ingestmodel.StatusPaused || status == ingestmodel.StatusStopped {
		return ErrAborted
	}

	return nil
}

// ProcessMedia drives one media item through download, tag assembly,
// category resolution, tag materialization, source building, and
// upload-or-merge. Relation linking runs once per job, after every
// media item, via LinkRelations.
func (p *Pipeline) ProcessMedia(ctx context.Context, req MediaRequest) (Outcome, error) {
	logger := slog.With("handler", req.Handler.Name(), "page_url", req.Media.PageURL)

	if err := abortIfNeeded(ctx, req.CheckAborted); err != nil {
		return Outcome{}, err
	}

	creds := req.UserCfg.SiteCredentials[req.Handler.Name()]
	downloaded, err := p.downloader.Download(ctx, req.Media, req.ScratchDir, req.Handler, creds)
	if err != nil {
		logger.WarnContext(ctx, "download failed, skipping media", "error", err)

		return Outcome{Skipped: true, SkipReason: err.Error()}, nil
	}
	if len(downloaded.Files) == 0 {
		return Outcome{Skipped: true, SkipReason: "no files produced"}, nil
	}
	file := downloaded.Files[0]

	if err := abortIfNeeded(ctx, req.CheckAborted); err != nil {
		return Outcome{}, err
	}
	reportStage(ctx, req.ReportStage, ingestmodel.StatusTagging)

	assembled, err := p.assembleTags(ctx, req, file, downloaded.Metadata)
	if err != nil {
		logger.WarnContext(ctx, "tag assembly failed, skipping media", "error", err)

		return Outcome{Skipped: true, SkipReason: err.Error()}, nil
	}

	categorized := resolveCategories(assembled, req.GlobalCfg.CategoryMapping)

	if err := abortIfNeeded(ctx, req.CheckAborted); err != nil {
		return Outcome{}, err
	}

	pairs := make([]tagcache.Pair, 0, len(categorized))
	for name, category := range categorized {
		pairs = append(pairs, tagcache.Pair{Name: name, Category: category})
	}
	if err := p.tagCache.EnsureBatch(ctx, pairs); err != nil {
		return Outcome{}, fmt.Errorf("pipeline: materialize tags: %w", err)
	}

	source := buildSource(req.SourceOverride, req.Media.DirectURL, req.Media.PageURL, req.Handler)

	if err := abortIfNeeded(ctx, req.CheckAborted); err != nil {
		return Outcome{}, err
	}
	reportStage(ctx, req.ReportStage, ingestmodel.StatusUploading)

	booruCreds := booruclient.Credentials{
		BaseURL:  req.UserCfg.BooruBaseURL,
		Username: req.UserCfg.BooruUsername,
		Token:    req.UserCfg.BooruToken,
	}

	// The AI tagger's rating, when it ran, beats the job's default
	// safety; a job whose tagging was skipped keeps what the caller set.
	safety := req.Safety
	if assembled.AISafety != nil {
		safety = *assembled.AISafety
	}

	outcome, err := p.uploadOrMerge(ctx, uploadRequest{
		Creds:  booruCreds,
		File:   file,
		Tags:   assembled.Tags,
		Safety: string(safety),
		Source: source,
	})
	if err != nil {
		return Outcome{}, err
	}

	outcome.TagsFromSource = tagsByOrigin(assembled, originInitial, originSource)
	outcome.TagsFromAI = tagsByOrigin(assembled, originAI)
	outcome.TagsApplied = assembled.Tags

	return outcome, nil
}
