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

package workerengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/boorudev/ingestpipe/internal/booruclient"
	"github.com/boorudev/ingestpipe/internal/eventbus"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/jobstore"
	"github.com/boorudev/ingestpipe/internal/pipeline"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
)

// processJob drives one claimed job end to end: load config, stage a
// scratch directory, dispatch by job type, and apply the retry policy
// on any non-abort failure.
func (e *Engine) processJob(ctx context.Context, job *ingestmodel.Job, workerID string) {
	globalCfg, err := e.cfg.LoadGlobalConfig(ctx)
	if err != nil {
		e.applyRetryPolicy(ctx, job, ingestmodel.GlobalConfig{}, fmt.Errorf("workerengine: load global config: %w", err))

		return
	}

	userCfg, err := e.cfg.LoadUserConfig(ctx, job.Owner)
	if err != nil {
		e.applyRetryPolicy(ctx, job, globalCfg, fmt.Errorf("workerengine: load user config: %w", err))

		return
	}

	scratchDir := filepath.Join(e.scratchRoot, job.ID.String())
	if err := e.mkdirAll(scratchDir); err != nil {
		e.applyRetryPolicy(ctx, job, globalCfg, fmt.Errorf("workerengine: create scratch dir: %w", err))

		return
	}
	defer func() {
		if err := e.removeAll(scratchDir); err != nil {
			slog.WarnContext(ctx, "workerengine: scratch cleanup failed", "worker_id", workerID, "job_id", job.ID, "error", err)
		}
	}()

	creds := booruclient.Credentials{BaseURL: userCfg.BooruBaseURL, Username: userCfg.BooruUsername, Token: userCfg.BooruToken}
	checkAborted := pipeline.StatusChecker(func(ctx context.Context) (ingestmodel.Status, error) {
		return e.store.ObserveStatus(ctx, job.ID)
	})

	var procErr error
	if job.JobType == ingestmodel.JobTypeTagExisting {
		procErr = e.runTagExisting(ctx, job, creds, checkAborted)
	} else {
		procErr = e.runMediaJob(ctx, job, globalCfg, userCfg, scratchDir, creds, checkAborted)
	}

	if procErr == nil {
		return
	}
	if errors.Is(procErr, pipeline.ErrAborted) {
		// The job was paused or stopped out from under the worker; the
		// control plane already recorded the status change, so there is
		// nothing left for this worker to do.
		return
	}

	e.applyRetryPolicy(ctx, job, globalCfg, procErr)
}

// runMediaJob drives every media item of a url or file job through the
// pipeline and links their relations once all items are processed.
func (e *Engine) runMediaJob(
	ctx context.Context,
	job *ingestmodel.Job,
	globalCfg ingestmodel.GlobalConfig,
	userCfg ingestmodel.UserConfig,
	scratchDir string,
	creds booruclient.Credentials,
	checkAborted pipeline.StatusChecker,
) error {
	var handler sitehandler.Handler
	var mediaItems []ingestmodel.ExtractedMedia

	if job.JobType == ingestmodel.JobTypeFile {
		handler = sitehandler.NewGeneric()
		mediaItems = []ingestmodel.ExtractedMedia{{DirectURL: uploadedFilePath(scratchDir, job.OriginalFilename)}}
	} else {
		handler = e.registry.Resolve(job.URL)
		items, err := e.enumerator.Enumerate(ctx, job.URL, handler)
		if err != nil {
			return fmt.Errorf("workerengine: enumerate: %w", err)
		}
		mediaItems = items
	}

	reported := make(map[ingestmodel.Status]bool, 2)
	reportStage := pipeline.StageReporter(func(ctx context.Context, status ingestmodel.Status) {
		if reported[status] {
			return
		}
		reported[status] = true

		progress := 50
		if status == ingestmodel.StatusUploading {
			progress = 75
		}
		e.transitionAndPublish(ctx, job, status, intPtr(progress))
	})

	outcomes := make([]pipeline.MediaOutcome, 0, len(mediaItems))
	for i, media := range mediaItems {
		outcome, err := e.pipe.ProcessMedia(ctx, pipeline.MediaRequest{
			Media:          media,
			Handler:        handler,
			ScratchDir:     scratchDir,
			InitialTags:    job.InitialTags,
			SourceOverride: job.SourceOverride,
			Safety:         job.Safety,
			SkipTagging:    job.SkipTagging,
			GlobalCfg:      globalCfg,
			UserCfg:        userCfg,
			CheckAborted:   checkAborted,
			ReportStage:    reportStage,
		})
		if err != nil {
			return err
		}
		outcomes = append(outcomes, pipeline.MediaOutcome{Index: i, Outcome: outcome})
	}

	result, err := e.pipe.LinkRelations(ctx, creds, outcomes)
	if err != nil {
		return fmt.Errorf("workerengine: link relations: %w", err)
	}
	if result.PrimaryPostID == 0 {
		return fmt.Errorf("workerengine: every media item in job was skipped")
	}

	status := ingestmodel.StatusCompleted
	if result.WasMerge {
		status = ingestmodel.StatusMerged
	}
	postID := result.PrimaryPostID

	if err := e.store.Update(ctx, job.ID, jobstore.Mutations{
		Status:         &status,
		SzuruPostID:    &postID,
		RelatedPostIDs: result.RelatedPostIDs,
		WasMerge:       &result.WasMerge,
		TagsApplied:    collectTags(outcomes, func(o pipeline.Outcome) []string { return o.TagsApplied }),
		TagsFromSource: collectTags(outcomes, func(o pipeline.Outcome) []string { return o.TagsFromSource }),
		TagsFromAI:     collectTags(outcomes, func(o pipeline.Outcome) []string { return o.TagsFromAI }),
	}); err != nil {
		return fmt.Errorf("workerengine: update completed job: %w", err)
	}

	job.Status = status
	job.SzuruPostID = &postID
	job.RelatedPostIDs = result.RelatedPostIDs
	job.WasMerge = result.WasMerge
	e.publish(ctx, *job, status, intPtr(100), nil)

	return nil
}

// runTagExisting implements the tag_existing job type: apply the job's
// initial tags to an already-uploaded post without re-running
// extraction or AI tagging (there is no content to download).
func (e *Engine) runTagExisting(ctx context.Context, job *ingestmodel.Job, creds booruclient.Credentials, checkAborted pipeline.StatusChecker) error {
	if job.TargetPostID == nil {
		return fmt.Errorf("workerengine: tag_existing job missing target post id")
	}

	outcome, err := e.pipe.RetagExisting(ctx, pipeline.RetagRequest{
		PostID:       *job.TargetPostID,
		InitialTags:  job.InitialTags,
		Creds:        creds,
		CheckAborted: checkAborted,
	})
	if err != nil {
		return err
	}

	status := ingestmodel.StatusCompleted
	postID := outcome.PostID
	if err := e.store.Update(ctx, job.ID, jobstore.Mutations{
		Status:         &status,
		SzuruPostID:    &postID,
		TagsApplied:    outcome.TagsApplied,
		TagsFromSource: outcome.TagsFromSource,
	}); err != nil {
		return fmt.Errorf("workerengine: update tag_existing job: %w", err)
	}

	job.Status = status
	job.SzuruPostID = &postID
	job.TagsApplied = outcome.TagsApplied
	e.publish(ctx, *job, status, intPtr(100), nil)

	return nil
}

// transitionAndPublish persists a stage-boundary status change and
// announces it, keeping the job's in-memory Status current so later
// error handling sees the latest state.
func (e *Engine) transitionAndPublish(ctx context.Context, job *ingestmodel.Job, status ingestmodel.Status, progress *int) {
	if err := e.store.Update(ctx, job.ID, jobstore.Mutations{Status: &status}); err != nil {
		slog.ErrorContext(ctx, "workerengine: stage transition failed", "job_id", job.ID, "status", status, "error", err)
	}
	job.Status = status
	e.publish(ctx, *job, status, progress, nil)
}

// publish builds and sends the SSE job_update payload for a status
// change. Publish errors are logged, not propagated: a dropped
// notification never fails the job itself.
func (e *Engine) publish(ctx context.Context, job ingestmodel.Job, status ingestmodel.Status, progress *int, retriesExhausted *bool) {
	payload := eventbus.JobUpdated{
		JobID:     job.ID.String(),
		Status:    status,
		Progress:  progress,
		Owner:     job.Owner,
		Timestamp: e.now(),
	}
	if job.ErrorMessage != "" {
		payload.ErrorMessage = job.ErrorMessage
	}
	if job.SzuruPostID != nil {
		payload.SzuruPostID = job.SzuruPostID
	}
	if len(job.TagsApplied) > 0 {
		payload.Tags = job.TagsApplied
	}
	if retriesExhausted != nil {
		payload.RetriesExhausted = retriesExhausted
		retryCount := job.RetryCount
		payload.RetryCount = &retryCount
	}

	if err := e.publisher.PublishJobUpdated(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "workerengine: publish failed", "job_id", job.ID, "error", err)
	}
}

// collectTags unions tags across every media outcome in enumeration
// order, case-insensitively deduplicated.
func collectTags(outcomes []pipeline.MediaOutcome, pick func(pipeline.Outcome) []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range outcomes {
		for _, tag := range pick(o.Outcome) {
			key := strings.ToLower(tag)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, tag)
		}
	}

	return out
}
