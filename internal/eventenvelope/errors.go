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

package eventenvelope

import "errors"

// ErrMalformed indicates the raw bytes are not a valid envelope.
var ErrMalformed = errors.New("eventenvelope: malformed envelope")

// ErrNoRoute indicates no registered handler matched the envelope's kind/version.
var ErrNoRoute = errors.New("eventenvelope: no route registered")
