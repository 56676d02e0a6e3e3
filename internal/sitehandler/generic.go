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

// Generic is the registry's fallback handler: it matches everything,
// uses neither resolve mode nor direct download, and defers entirely
// to yt-dlp via the extractor tool.
type Generic struct{}

// NewGeneric returns the fallback handler.
func NewGeneric() Generic { return Generic{} }

func (Generic) Name() string { return "generic" }

func (Generic) Matches(string) bool { return true }

func (Generic) Normalize(url string) string { return url }

func (Generic) NormalizeForComparison(url string) (string, bool) { return "", false }

func (Generic) UsesResolveMode() bool { return false }

func (Generic) UsesDirectDownload() bool { return false }

func (Generic) SupportsBrowse() bool { return false }

func (Generic) CredentialKeys() []string { return nil }

func (Generic) BuildExtractorArgs(map[string]string) (ExtractorArgs, error) {
	return ExtractorArgs{}, nil
}
