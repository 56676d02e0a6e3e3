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

package sitehandler

import (
	"fmt"
	"os"
)

// writeCookieJar persists raw cookie-jar content (Netscape format) to a
// private temp file the extractor subprocess can read with --cookies.
// Callers must add the returned path to ExtractorArgs.TempFiles so it
// is removed once the subprocess exits.
func writeCookieJar(raw string) (string, error) {
	f, err := os.CreateTemp("", "ingestpipe-cookies-*.txt")
	if err != nil {
		return "", fmt.Errorf("sitehandler: create cookie jar: %w", err)
	}
	defer f.Close()

	if err := os.Chmod(f.Name(), 0o600); err != nil {
		return "", fmt.Errorf("sitehandler: chmod cookie jar: %w", err)
	}
	if _, err := f.WriteString(raw); err != nil {
		return "", fmt.Errorf("sitehandler: write cookie jar: %w", err)
	}

	return f.Name(), nil
}
