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

package booruclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boorudev/ingestpipe/internal/tagcache"
)

// tagWire is the Booru's wire shape for a tag resource.
type tagWire struct {
	Names    []string `json:"names"`
	Category string   `json:"category"`
	Version  int      `json:"version"`
}

// CreateTag creates a new tag under category. It returns
// tagcache.ErrAlreadyExists (via errDuplicateOrGeneric) if the tag is
// already present, satisfying tagcache.RemoteTagClient.
func (c *Client) CreateTag(ctx context.Context, name, category string) error {
	wire := map[string]any{
		"names":    []string{name},
		"category": category,
	}

	return c.doJSON(ctx, c.tagCreds(), http.MethodPost, "/api/tags", wire, nil)
}

// GetTag fetches a tag's current category and version, satisfying
// tagcache.RemoteTagClient.
func (c *Client) GetTag(ctx context.Context, name string) (*tagcache.RemoteTag, error) {
	var wire tagWire
	path := fmt.Sprintf("/api/tag/%s", name)
	if err := c.doJSON(ctx, c.tagCreds(), http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}

	return &tagcache.RemoteTag{Name: name, Category: wire.Category, Version: wire.Version}, nil
}

// UpdateTagCategory reassigns name to category, guarded by optimistic
// concurrency on version.
func (c *Client) UpdateTagCategory(ctx context.Context, name string, version int, category string) error {
	wire := map[string]any{
		"version":  version,
		"category": category,
	}
	path := fmt.Sprintf("/api/tag/%s", name)

	return c.doJSON(ctx, c.tagCreds(), http.MethodPut, path, wire, nil)
}

// tagCreds returns the credential set the client was configured with for
// administrative tag operations, which the Booru scopes to a single
// service account shared across tenants rather than per-job owner
// credentials (tag categories are global, not per-user).
func (c *Client) tagCreds() Credentials {
	return c.adminCreds
}
