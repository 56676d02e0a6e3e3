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
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Upload posts a new file to the Booru. A repeat upload of content the
// server already has by hash surfaces as ErrDuplicateContent, which the
// pipeline treats as a non-fatal skip, not a failure.
func (c *Client) Upload(ctx context.Context, creds Credentials, path string, tags []string, safety, source string) (*Post, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("booruclient: open upload file: %w", err)
	}
	defer file.Close()

	body, contentType, err := buildMultipart(path, file, map[string]string{
		"tags":   joinTags(tags),
		"safety": safety,
		"source": source,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.BaseURL+"/api/posts", body)
	if err != nil {
		return nil, fmt.Errorf("booruclient: build upload request: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("booruclient: upload: %w", err)
	}
	defer resp.Body.Close()

	var post Post
	if err := c.decodeResponse(resp, &post); err != nil {
		return nil, err
	}

	return &post, nil
}

// ReverseSearch looks for an existing post matching path by content, and
// any visually similar posts.
func (c *Client) ReverseSearch(ctx context.Context, creds Credentials, path string) (*ReverseSearchResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("booruclient: open reverse-search file: %w", err)
	}
	defer file.Close()

	body, contentType, err := buildMultipart(path, file, nil)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.BaseURL+"/api/posts/reverse-search", body)
	if err != nil {
		return nil, fmt.Errorf("booruclient: build reverse-search request: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("booruclient: reverse search: %w", err)
	}
	defer resp.Body.Close()

	var wire struct {
		Exact   *Post  `json:"exactPost"`
		Similar []Post `json:"similarPosts"`
	}
	if err := c.decodeResponse(resp, &wire); err != nil {
		return nil, err
	}

	return &ReverseSearchResult{Exact: wire.Exact, Similar: wire.Similar}, nil
}

// SearchByChecksum finds posts whose stored checksum equals sha1.
func (c *Client) SearchByChecksum(ctx context.Context, creds Credentials, sha1 string) ([]Post, error) {
	var wire struct {
		Results []Post `json:"results"`
	}
	path := fmt.Sprintf("/api/posts?query=checksum:%s", sha1)
	if err := c.doJSON(ctx, creds, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}

	return wire.Results, nil
}

// SearchPostsByTags finds posts matching a Booru query string built
// from tag/tag-count criteria (e.g. "tag-count:3.. rating:safe"), used
// by the /tag-jobs/discover endpoint to enumerate
// candidates for tag_existing jobs. limit bounds the page size.
func (c *Client) SearchPostsByTags(ctx context.Context, creds Credentials, query string, limit int) ([]Post, error) {
	var wire struct {
		Results []Post `json:"results"`
	}
	path := fmt.Sprintf("/api/posts?query=%s&limit=%d", url.QueryEscape(strings.TrimSpace(query)), limit)
	if err := c.doJSON(ctx, creds, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}

	return wire.Results, nil
}

// GetPost fetches a single post by id.
func (c *Client) GetPost(ctx context.Context, creds Credentials, id int64) (*Post, error) {
	var post Post
	path := fmt.Sprintf("/api/post/%d", id)
	if err := c.doJSON(ctx, creds, http.MethodGet, path, nil, &post); err != nil {
		return nil, err
	}

	return &post, nil
}

// UpdatePost applies a partial update to post id, guarded by optimistic
// concurrency on version. A stale version surfaces as ErrVersionConflict.
func (c *Client) UpdatePost(ctx context.Context, creds Credentials, id int64, version int, update UpdatePostRequest) (*Post, error) {
	wire := map[string]any{"version": version}
	if update.Tags != nil {
		wire["tags"] = update.Tags
	}
	if update.Source != nil {
		wire["source"] = *update.Source
	}
	if update.Relations != nil {
		wire["relations"] = update.Relations
	}
	if update.Safety != nil {
		wire["safety"] = *update.Safety
	}

	var post Post
	path := fmt.Sprintf("/api/post/%d", id)
	if err := c.doJSON(ctx, creds, http.MethodPut, path, wire, &post); err != nil {
		return nil, err
	}

	return &post, nil
}

func joinTags(tags []string) string {
	var buf bytes.Buffer
	for i, t := range tags {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(t)
	}

	return buf.String()
}

// buildMultipart assembles a multipart body carrying the file at path
// under field "content" with a MIME-aware Content-Type, plus any extra
// form fields.
func buildMultipart(path string, file io.Reader, fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="content"; filename=%q`, filepath.Base(path))}
	header["Content-Type"] = []string{contentType}

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("booruclient: create multipart file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("booruclient: write multipart file part: %w", err)
	}

	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("booruclient: write multipart field %q: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("booruclient: close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
