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

// Package booruclient is a typed client for the downstream Booru's REST
// API. Every call is authenticated per-request from an
// explicit Credentials value rather than client-wide state, because a
// single process serves many tenants concurrently.
package booruclient

import (
	"net/http"
	"time"
)

// Credentials identifies which Booru tenant a call acts as.
type Credentials struct {
	BaseURL  string
	Username string
	Token    string
}

// Client is a process-wide, connection-pooled REST client. It carries
// no per-tenant state: Credentials are passed to every call.
//
// The one exception is adminCreds: tag categories are a Booru-wide
// concept, not a per-user one, so tag operations (CreateTag, GetTag,
// UpdateTagCategory) always authenticate as a single configured service
// account rather than as the owning job's user.
type Client struct {
	http       *http.Client
	adminCreds Credentials
}

// ClientOption customizes a Client before it is returned from New.
type ClientOption func(*Client)

// WithTimeout bounds every request's total round-trip time.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithAdminCredentials sets the service-account credentials used for tag
// administration calls (CreateTag, GetTag, UpdateTagCategory).
func WithAdminCredentials(creds Credentials) ClientOption {
	return func(c *Client) { c.adminCreds = creds }
}

// New returns a Client ready for concurrent use by every worker in the
// process.
func New(opts ...ClientOption) *Client {
	c := &Client{http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}

	return c
}
