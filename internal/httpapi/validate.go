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

package httpapi

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/boorudev/ingestpipe/internal/errtax"
	"github.com/boorudev/ingestpipe/internal/sitehandler"
)

// knownFeedPaths matches page paths that are never a single post on a
// registered site handler: bare domains, home/feed pages, and
// subreddit listings that aren't a specific submission.
var knownFeedPaths = []*regexp.Regexp{
	regexp.MustCompile(`^/?$`),
	regexp.MustCompile(`(?i)^/home/?$`),
	regexp.MustCompile(`(?i)^/feed/?$`),
	regexp.MustCompile(`(?i)^/posts/?$`),
	regexp.MustCompile(`(?i)^/gallery/?$`),
}

// redditPostPath matches a specific reddit submission; anything else
// under reddit.com (the front page, r/subreddit listings, /home) is a
// feed, not a post.
var redditPostPath = regexp.MustCompile(`(?i)/comments/`)

// validateJobURL enforces that the URL must resolve, per the registry,
// to a specific post. A URL the registry hands to the
// generic yt-dlp fallback has no such requirement, since the fallback
// covers arbitrary media pages yt-dlp itself knows how to enumerate.
func validateJobURL(reg *sitehandler.Registry, rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("httpapi: invalid job url %q: %w", rawURL, errtax.ErrValidation)
	}

	handler := reg.Resolve(rawURL)
	if reg.IsFallback(handler) {
		return nil
	}

	for _, feedPath := range knownFeedPaths {
		if feedPath.MatchString(parsed.Path) {
			return fmt.Errorf("httpapi: url %q is a feed/home page, not a specific post: %w", rawURL, errtax.ErrValidation)
		}
	}

	if strings.Contains(strings.ToLower(parsed.Hostname()), "reddit.com") && !redditPostPath.MatchString(parsed.Path) {
		return fmt.Errorf("httpapi: url %q is a subreddit or front page, not a specific post: %w", rawURL, errtax.ErrValidation)
	}

	return nil
}
