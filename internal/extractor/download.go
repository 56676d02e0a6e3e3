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

package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/boorudev/ingestpipe/internal/dynvalue"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
)

// maxDirectDownloadBytes bounds a handler.uses_direct_download GET.
const maxDirectDownloadBytes = 20 * 1024 * 1024

// Downloaded is what Download hands back to the pipeline: the files it
// wrote into destDir and a merged metadata document.
type Downloaded struct {
	Files    []string
	Metadata map[string]any
}

// Download materializes media into destDir, following handler's
// declared download strategy, falling back to yt-dlp on extractor
// failure or an empty result.
func (e *Extractor) Download(
	ctx context.Context,
	media ingestmodel.ExtractedMedia,
	destDir string,
	handler sitehandler.Handler,
	userCreds map[string]string,
) (Downloaded, error) {
	logger := slog.With("handler", handler.Name(), "dest_dir", destDir)

	if handler.UsesDirectDownload() && media.DirectURL != media.PageURL {
		path, err := e.directDownload(ctx, media.DirectURL, destDir)
		if err != nil {
			return Downloaded{}, fmt.Errorf("extractor: direct download: %w", err)
		}

		return Downloaded{Files: []string{path}, Metadata: media.Metadata}, nil
	}

	args, err := handler.BuildExtractorArgs(userCreds)
	if err != nil {
		return Downloaded{}, fmt.Errorf("extractor: build args: %w", err)
	}
	defer cleanupTempFiles(ctx, args.TempFiles)

	toolArgs := append(append([]string{}, args.Argv...), "-d", destDir, media.PageURL)
	if _, err := e.runner.Run(ctx, e.dumpTimeout, e.metadataPath, toolArgs...); err != nil {
		logger.WarnContext(ctx, "extractor tool reported an error, checking dest_dir anyway", "error", err)
	}

	result, err := collectDestDir(destDir)
	if err != nil {
		return Downloaded{}, fmt.Errorf("extractor: collect dest dir: %w", err)
	}
	if len(result.Files) > 0 {
		return result, nil
	}

	logger.WarnContext(ctx, "extractor tool produced no files, falling back to yt-dlp")
	if _, err := e.runner.Run(ctx, e.dumpTimeout, e.ytDlpPath, "-o", filepath.Join(destDir, "%(id)s.%(ext)s"), media.PageURL); err != nil {
		logger.WarnContext(ctx, "yt-dlp reported an error, checking dest_dir anyway", "error", err)
	}

	result, err = collectDestDir(destDir)
	if err != nil {
		return Downloaded{}, fmt.Errorf("extractor: collect dest dir after yt-dlp: %w", err)
	}
	if len(result.Files) == 0 {
		return Downloaded{}, ErrNoFilesProduced
	}

	return result, nil
}

func (e *Extractor) directDownload(ctx context.Context, url, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxDirectDownloadBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxDirectDownloadBytes {
		return "", ErrBodyTooLarge
	}

	ext := extensionFor(resp.Header.Get("Content-Type"), url)
	name := uniqueFilename(destDir, "media"+ext)
	path := filepath.Join(destDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return path, nil
}

func extensionFor(contentType, url string) string {
	if contentType != "" {
		if exts, err := mime.ExtensionsByType(strings.Split(contentType, ";")[0]); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	if ext := filepath.Ext(url); ext != "" && len(ext) <= 5 {
		return strings.SplitN(ext, "?", 2)[0]
	}

	return ".bin"
}

// uniqueFilename resolves a collision inside dir by appending _1, _2,
// ... before the extension.
func uniqueFilename(dir, name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}

// collectDestDir recursively walks destDir, treating *.json files as
// metadata sidecars to merge and *.txt files as discardable artifacts;
// everything else is a media file.
func collectDestDir(destDir string) (Downloaded, error) {
	var files []string
	metadata := map[string]any{}

	err := filepath.WalkDir(destDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			raw, readErr := os.ReadFile(path)
			if readErr != nil {
				return fmt.Errorf("read sidecar %s: %w", path, readErr)
			}
			var sidecar map[string]any
			if json.Unmarshal(raw, &sidecar) == nil {
				metadata = dynvalue.Merge(metadata, sidecar)
			}
		case ".txt":
			// discardable tweet-content artifact, not a media file
		default:
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return Downloaded{}, err
	}

	return Downloaded{Files: files, Metadata: metadata}, nil
}

func cleanupTempFiles(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.WarnContext(ctx, "extractor: failed to clean up temp file", "path", p, "error", err)
		}
	}
}
