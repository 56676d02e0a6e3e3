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

// Package extractor drives the external enumerate/download subprocess
// tooling that turns a source URL into one or more local media files
// plus their metadata.
package extractor

import "errors"

// ErrNoFilesProduced indicates the extractor tool and then the yt-dlp
// fallback both left dest_dir empty, whether or not either exited with
// an error. The direct-GET path never returns it.
var ErrNoFilesProduced = errors.New("extractor: no files produced")

// ErrBodyTooLarge indicates a direct-download response exceeded the
// 20 MiB cap.
var ErrBodyTooLarge = errors.New("extractor: response body exceeds maximum size")
