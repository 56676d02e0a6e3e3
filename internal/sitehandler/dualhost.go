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
	"net/url"
	"regexp"
	"strings"
)

// DualHost handles a site family that serves the same post under two
// distinct host spaces: a numeric-id host (the canonical, modern URL)
// and a legacy hash-id subdomain that predates it. Both must resolve
// to the handler, but they are NOT interchangeable for dedup purposes
// unless a post carries the same numeric id on both — so
// NormalizeForComparison only collapses the numeric-id host's own
// query/fragment noise and leaves the legacy host's hash ids as
// distinct keys.
type DualHost struct {
	numericHost string
	legacyHost  string
}

var numericPostPath = regexp.MustCompile(`^/posts/(\d+)$`)

// NewDualHost returns a handler spanning numericHost (e.g.
// "example.com") and legacyHost (e.g. "legacy.example.com").
func NewDualHost(numericHost, legacyHost string) DualHost {
	return DualHost{numericHost: strings.ToLower(numericHost), legacyHost: strings.ToLower(legacyHost)}
}

func (h DualHost) Name() string { return "dualhost:" + h.numericHost }

func (h DualHost) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())

	return host == h.numericHost || host == h.legacyHost
}

func (h DualHost) Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawQuery = ""

	return u.String()
}

// NormalizeForComparison returns "numeric:<id>" for a canonical
// /posts/<id> URL on the numeric host, and "legacy:<host><path>" for
// everything else (including the legacy hash-id subdomain), so the two
// host spaces are never collapsed into the same dedup key unless the
// numeric id is explicitly present.
//
// Test vectors (see dualhost_test.go):
//
//	https://example.com/posts/4821            -> numeric:4821   (ok)
//	https://example.com/posts/4821?ref=search -> numeric:4821   (ok)
//	https://legacy.example.com/h/a1b2c3d4     -> legacy:legacy.example.com/h/a1b2c3d4 (ok)
//	https://example.com/gallery/4821          -> legacy:example.com/gallery/4821 (ok; not a post path)
func (h DualHost) NormalizeForComparison(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())

	if host == h.numericHost {
		if m := numericPostPath.FindStringSubmatch(u.Path); m != nil {
			return "numeric:" + m[1], true
		}
	}

	return "legacy:" + host + u.Path, true
}

func (DualHost) UsesResolveMode() bool { return false }

func (DualHost) UsesDirectDownload() bool { return false }

func (DualHost) SupportsBrowse() bool { return false }

func (DualHost) CredentialKeys() []string { return []string{"cookies"} }

func (h DualHost) BuildExtractorArgs(userCreds map[string]string) (ExtractorArgs, error) {
	cookies, ok := userCreds["cookies"]
	if !ok || cookies == "" {
		return ExtractorArgs{}, nil
	}

	jarPath, err := writeCookieJar(cookies)
	if err != nil {
		return ExtractorArgs{}, err
	}

	return ExtractorArgs{
		Argv:      []string{"--cookies", jarPath},
		TempFiles: []string{jarPath},
	}, nil
}
