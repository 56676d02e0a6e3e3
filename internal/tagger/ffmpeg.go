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

package tagger

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// FFmpegFrameExtractor implements FrameExtractor by shelling out to
// ffmpeg's scene-change filter. When scene detection yields nothing it
// falls back to the video's first frame (frame 0); it does not look up
// the duration or seek to a mid-duration frame.
type FFmpegFrameExtractor struct {
	BinaryPath string
	Timeout    time.Duration
}

// ExtractFrames implements FrameExtractor.
func (f FFmpegFrameExtractor) ExtractFrames(ctx context.Context, videoPath string, sceneThreshold float64, maxFrames int) ([]string, func(), error) {
	dir, err := os.MkdirTemp("", "ingestpipe-frames-*")
	if err != nil {
		return nil, func() {}, fmt.Errorf("tagger: create frame dir: %w", err)
	}
	cleanup := func() {
		_ = os.RemoveAll(dir)
	}

	runCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	pattern := filepath.Join(dir, "frame_%03d.jpg")
	filter := fmt.Sprintf("select='gt(scene,%f)'", sceneThreshold)
	cmd := exec.CommandContext(runCtx, f.BinaryPath, "-i", videoPath, "-vf", filter,
		"-vsync", "vfr", "-frames:v", fmt.Sprintf("%d", maxFrames), pattern)

	// A non-zero exit doesn't necessarily mean no frames were written;
	// check the glob below before treating this as a failure.
	_ = cmd.Run()

	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		cleanup()

		return nil, func() {}, fmt.Errorf("tagger: glob frames: %w", err)
	}
	if len(frames) > 0 {
		return frames, cleanup, nil
	}

	midFramePath := filepath.Join(dir, "mid.jpg")
	midCmd := exec.CommandContext(runCtx, f.BinaryPath, "-i", videoPath, "-vf", "select='eq(n,0)'",
		"-vframes", "1", midFramePath)
	if err := midCmd.Run(); err != nil {
		cleanup()

		return nil, func() {}, fmt.Errorf("tagger: extract fallback frame: %w", err)
	}

	return []string{midFramePath}, cleanup, nil
}
