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
	"fmt"
	"os"
	"strings"

	"github.com/boorudev/ingestpipe/internal/extractor"
	"github.com/boorudev/ingestpipe/internal/ingestmodel"
	"github.com/boorudev/ingestpipe/internal/pipeline"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
)

// uploadedFileScheme marks an ExtractedMedia.DirectURL that points at a
// file already written to the job's scratch directory by the upload
// endpoint, rather than something to fetch over the network.
const uploadedFileScheme = "file://"

// uploadedFilePath builds the convention a job_type=file job's single
// media item points at: the original upload, preserved verbatim under
// scratchDir/upload/.
func uploadedFilePath(scratchDir, originalFilename string) string {
	return uploadedFileScheme + scratchDir + "/upload/" + originalFilename
}

// fileAwareDownloader wraps a real pipeline.MediaDownloader, short
// circuiting for media that was already placed on disk by the upload
// endpoint instead of enumerated from a site. This lets one Pipeline,
// built once at startup around the real extractor, serve both job_type
// url and job_type file jobs without pipeline knowing job types exist.
type fileAwareDownloader struct {
	inner pipeline.MediaDownloader
}

// NewFileAwareDownloader adapts inner so it also understands the
// "file://" DirectURL convention used for already-uploaded media.
func NewFileAwareDownloader(inner pipeline.MediaDownloader) pipeline.MediaDownloader {
	return fileAwareDownloader{inner: inner}
}

func (d fileAwareDownloader) Download(
	ctx context.Context,
	media ingestmodel.ExtractedMedia,
	destDir string,
	handler sitehandler.Handler,
	userCreds map[string]string,
) (extractor.Downloaded, error) {
	if path, ok := strings.CutPrefix(media.DirectURL, uploadedFileScheme); ok {
		if _, err := os.Stat(path); err != nil {
			return extractor.Downloaded{}, fmt.Errorf("workerengine: locate uploaded file: %w", err)
		}

		return extractor.Downloaded{Files: []string{path}, Metadata: media.Metadata}, nil
	}

	return d.inner.Download(ctx, media, destDir, handler, userCreds)
}
