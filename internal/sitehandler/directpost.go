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
	"strings"
)

// DirectPost handles single-image hosting sites where the page URL and
// the media URL are the same HTTP resource: no resolver, no extractor
// subprocess, just a bounded GET.
type DirectPost struct {
	host string
}

// NewDirectPost returns a handler that claims any URL on host.
func NewDirectPost(host string) DirectPost {
	return DirectPost{host: strings.ToLower(host)}
}

func (h DirectPost) Name() string { return "directpost:" + h.host }

func (h DirectPost) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return strings.EqualFold(u.Hostname(), h.host)
}

func (h DirectPost) Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawQuery = ""

	return u.String()
}

func (h DirectPost) NormalizeForComparison(rawURL string) (string, bool) {
	return "", false
}

func (DirectPost) UsesResolveMode() bool { return false }

func (DirectPost) UsesDirectDownload() bool { return true }

func (DirectPost) SupportsBrowse() bool { return false }

func (DirectPost) CredentialKeys() []string { return nil }

func (DirectPost) BuildExtractorArgs(map[string]string) (ExtractorArgs, error) {
	return ExtractorArgs{}, nil
}
