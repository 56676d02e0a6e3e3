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
	"net/url"
	"strings"
)

// Gallery handles gallery-style sites that require an authenticated
// session and expose media only as direct-media URLs (one per line),
// never as a single JSON metadata dump.
type Gallery struct {
	host string
}

// NewGallery returns a resolve-mode handler for host.
func NewGallery(host string) Gallery {
	return Gallery{host: strings.ToLower(host)}
}

func (h Gallery) Name() string { return "gallery:" + h.host }

func (h Gallery) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return strings.EqualFold(u.Hostname(), h.host)
}

func (h Gallery) Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""

	return u.String()
}

// NormalizeForComparison strips the page-number query parameter:
// gallery listings paginate the same underlying set, and a bare "?page=2"
// variant of a URL already ingested must not be treated as new.
func (h Gallery) NormalizeForComparison(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	q.Del("page")
	u.RawQuery = q.Encode()
	u.Fragment = ""

	key := strings.ToLower(u.Host) + u.Path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}

	return key, true
}

func (Gallery) UsesResolveMode() bool { return true }

func (Gallery) UsesDirectDownload() bool { return false }

func (Gallery) SupportsBrowse() bool { return true }

func (Gallery) CredentialKeys() []string { return []string{"username", "password"} }

// BuildExtractorArgs writes a username/password pair as extractor CLI
// flags. Gallery never needs a cookie jar, so TempFiles is always
// empty.
func (h Gallery) BuildExtractorArgs(userCreds map[string]string) (ExtractorArgs, error) {
	username, password := userCreds["username"], userCreds["password"]
	if username == "" || password == "" {
		return ExtractorArgs{}, fmt.Errorf("sitehandler: gallery %s: missing username/password credentials", h.host)
	}

	return ExtractorArgs{
		Argv: []string{"--username", username, "--password", password},
	}, nil
}
