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

package booruclient

import "errors"

// ErrDuplicateContent is returned by Upload when the Booru's own
// content-hash detection recognizes the file as already stored. The
// pipeline treats this as a non-fatal skip, not a failure.
var ErrDuplicateContent = errors.New("booruclient: duplicate content")

// ErrNotFound is returned by GetPost/GetTag for a missing resource.
var ErrNotFound = errors.New("booruclient: not found")

// ErrVersionConflict is returned by UpdatePost/UpdateTagCategory when
// the supplied version no longer matches the server's (optimistic
// concurrency failure).
var ErrVersionConflict = errors.New("booruclient: version conflict")

