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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/boorudev/ingestpipe/internal/dynvalue"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
)

// Extractor turns a source URL into ExtractedMedia items, and later
// materializes one of them to disk.
type Extractor struct {
	runner         Runner
	resolverPath   string
	metadataPath   string
	ytDlpPath      string
	resolveTimeout time.Duration
	dumpTimeout    time.Duration
}

// Config carries the subprocess tool paths and timeouts, set once at
// worker start (cmd/worker reads the paths and ResolveTimeout from the
// environment and DumpTimeout from GlobalConfig.DownloadTimeout).
type Config struct {
	ResolverPath   string
	MetadataPath   string
	YtDlpPath      string
	ResolveTimeout time.Duration
	DumpTimeout    time.Duration
}

// New returns an Extractor using cfg and runner.
func New(cfg Config, runner Runner) *Extractor {
	return &Extractor{
		runner:         runner,
		resolverPath:   cfg.ResolverPath,
		metadataPath:   cfg.MetadataPath,
		ytDlpPath:      cfg.YtDlpPath,
		resolveTimeout: cfg.ResolveTimeout,
		dumpTimeout:    cfg.DumpTimeout,
	}
}

// Enumerate lists the media items reachable from url according to
// handler's declared mode.
func (e *Extractor) Enumerate(ctx context.Context, url string, handler sitehandler.Handler) ([]ingestmodel.ExtractedMedia, error) {
	logger := slog.With("url", url, "handler", handler.Name())

	if handler.UsesResolveMode() {
		out, err := e.runner.Run(ctx, e.resolveTimeout, e.resolverPath, url)
		if err != nil {
			logger.WarnContext(ctx, "resolver exited non-zero, using any output produced", "error", err)
		}

		media := e.parseResolvedLines(out)
		if len(media) == 0 {
			return fallbackMedia(url), nil
		}

		return media, nil
	}

	out, err := e.runner.Run(ctx, e.dumpTimeout, e.metadataPath, "--dump-json", url)
	if err != nil {
		logger.WarnContext(ctx, "metadata dump exited non-zero, using any output produced", "error", err)
	}

	media, parseErr := e.parseMetadataDump(out, url)
	if parseErr != nil || len(media) == 0 {
		if parseErr != nil {
			logger.WarnContext(ctx, "metadata dump unparseable, falling back to page url", "error", parseErr)
		}

		return fallbackMedia(url), nil
	}

	return media, nil
}

func (e *Extractor) parseResolvedLines(out []byte) []ingestmodel.ExtractedMedia {
	var media []ingestmodel.ExtractedMedia
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		media = append(media, ingestmodel.ExtractedMedia{
			PageURL:   string(line),
			DirectURL: string(line),
		})
	}

	return media
}

// parseMetadataDump unwraps the three documented shapes: a single
// object, an array of objects, or an array of [type, url, dict]
// triplets, deduplicating by post id or, for entries without one, by the
// file URL string. No content hash of the media is computed or compared.
func (e *Extractor) parseMetadataDump(out []byte, pageURL string) ([]ingestmodel.ExtractedMedia, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, nil
	}

	root, err := dynvalue.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("extractor: parse metadata dump: %w", err)
	}

	var entries []dynvalue.Value
	if arr, ok := root.Array(); ok {
		entries = arr
	} else {
		entries = []dynvalue.Value{root}
	}

	seen := make(map[string]bool, len(entries))
	var out2 []ingestmodel.ExtractedMedia
	for _, entry := range entries {
		dict := unwrapTriplet(entry)

		dedupKey := dedupKeyOf(dict)
		if dedupKey != "" {
			if seen[dedupKey] {
				continue
			}
			seen[dedupKey] = true
		}

		fileURL, ok := dict.FirstString("file_url", "sample_url", "url")
		if !ok {
			continue
		}
		filename, _ := dict.FirstString("filename")

		out2 = append(out2, ingestmodel.ExtractedMedia{
			PageURL:           pageURL,
			DirectURL:         fileURL,
			SuggestedFilename: filename,
			Metadata:          dict.AsMap(),
		})
	}

	return out2, nil
}

// unwrapTriplet recognizes a [type, url, dict] array and returns its
// dict element; any other shape is returned unchanged.
func unwrapTriplet(v dynvalue.Value) dynvalue.Value {
	arr, ok := v.Array()
	if !ok || len(arr) != 3 {
		return v
	}
	if _, isMap := arr[2].Map(); !isMap {
		return v
	}

	return arr[2]
}

func dedupKeyOf(v dynvalue.Value) string {
	if id, ok := v.AsMap()["id"]; ok && id != nil && id != "" {
		return "id:" + fmt.Sprint(id)
	}
	if url, ok := v.FirstString("file_url", "sample_url", "url"); ok {
		return "url:" + url
	}

	return ""
}

func fallbackMedia(url string) []ingestmodel.ExtractedMedia {
	return []ingestmodel.ExtractedMedia{{PageURL: url, DirectURL: url}}
}
