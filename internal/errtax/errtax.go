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

// Package errtax defines the error taxonomy shared by every stage that
// talks to an external system: validation, transient, permanent,
// duplicate, and local errors are distinguished explicitly rather than
// via ad-hoc error strings.
package errtax

import "errors"

var (
	// ErrValidation is rejected at entry: a bad URL, an invalid status
	// transition, a missing required credential. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrTransient covers network timeouts, 5xx responses, and
	// extractor subprocess timeouts. Retried per the job's retry policy.
	ErrTransient = errors.New("transient external error")

	// ErrPermanent covers rejected authentication, an unsupported URL,
	// or a file that is truly absent. Retried up to max_retries, then
	// terminal.
	ErrPermanent = errors.New("permanent external error")

	// ErrDuplicateDetected is not a failure: the Booru rejected an
	// upload because it already has the content. The pipeline
	// downgrades this to a merge attempt or a skip.
	ErrDuplicateDetected = errors.New("duplicate content detected")

	// ErrLocal covers filesystem or decode errors local to this
	// process. Treated like ErrTransient.
	ErrLocal = errors.New("local error")
)

// Classify reports which taxonomy bucket err belongs to, walking the
// error chain with errors.Is. An error wrapped with none of the
// sentinels above is treated as permanent, since an unrecognized
// failure mode should not retry forever by default.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateDetected):
		return ErrDuplicateDetected
	case errors.Is(err, ErrValidation):
		return ErrValidation
	case errors.Is(err, ErrTransient):
		return ErrTransient
	case errors.Is(err, ErrLocal):
		return ErrLocal
	case errors.Is(err, ErrPermanent):
		return ErrPermanent
	default:
		return ErrPermanent
	}
}

// Retryable reports whether the retry policy should schedule another
// attempt for err. Validation and duplicate are never retryable;
// transient, local, and (up to the caller's retry budget) permanent
// are.
func Retryable(err error) bool {
	switch Classify(err) {
	case ErrValidation, ErrDuplicateDetected, nil:
		return false
	default:
		return true
	}
}
