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
	"bytes"
	"context"
	"os/exec"
	"time"
)

// Runner executes an external tool and captures its stdout. It exists
// so tests can substitute a fake process instead of shelling out.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (stdout []byte, exitErr error)
}

// ExecRunner runs real subprocesses via os/exec.
type ExecRunner struct{}

// Run invokes name with args, bounded by timeout. A non-zero exit is
// reported in exitErr but stdout is still returned: a subprocess may
// exit non-zero yet still have produced usable files.
func (ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &bytes.Buffer{}

	err := cmd.Run()

	return stdout.Bytes(), err
}
