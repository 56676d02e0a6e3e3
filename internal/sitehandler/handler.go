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

// Package sitehandler dispatches a source URL to the per-site policy
// that knows how to enumerate and download its media.
package sitehandler

// ExtractorArgs is what BuildExtractorArgs returns: the argv fragment
// to append to the extractor invocation, and any temp files (cookie
// jars, etc.) that must be removed once the subprocess exits.
type ExtractorArgs struct {
	Argv          []string
	TempFiles     []string
}

// Handler is the per-site extraction and normalization policy.
type Handler interface {
	// Name identifies the handler in logs and in UserConfig.SiteCredentials.
	Name() string

	// Matches reports whether this handler owns url.
	Matches(url string) bool

	// Normalize returns the canonical form used for storage and dedup.
	Normalize(url string) string

	// NormalizeForComparison returns a stricter key used to collapse
	// variant hosts/paths that Normalize alone would treat as distinct.
	// A false second return means "no stricter key"; the pipeline then
	// compares by host+path, lowercased.
	NormalizeForComparison(url string) (string, bool)

	// UsesResolveMode is true when direct-media enumeration must be
	// used instead of a JSON metadata dump.
	UsesResolveMode() bool

	// UsesDirectDownload is true when individual media should be
	// fetched by a plain HTTP GET instead of via the extractor tool.
	UsesDirectDownload() bool

	// SupportsBrowse is out of scope for this engine; kept on the
	// interface so handlers can document the capability.
	SupportsBrowse() bool

	// CredentialKeys lists the credential keys (e.g. "username",
	// "password", "api-key", "cookies") this handler may request from
	// the owner's per-site credentials.
	CredentialKeys() []string

	// BuildExtractorArgs turns the owner's credentials for this handler
	// into extractor CLI flags plus any temp files to clean up.
	BuildExtractorArgs(userCreds map[string]string) (ExtractorArgs, error)
}
