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
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/boorudev/ingestpipe/internal/tagcache"
)

func (c *Client) doJSON(ctx context.Context, creds Credentials, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("booruclient: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, creds.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("booruclient: build request: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("booruclient: do request: %w", err)
	}
	defer resp.Body.Close()

	return c.decodeResponse(resp, out)
}

func (c *Client) decodeResponse(resp *http.Response, out any) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("booruclient: decode response: %w", err)
		}

		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrVersionConflict
	case http.StatusUnprocessableEntity:
		return errDuplicateOrGeneric(resp)
	default:
		raw, _ := io.ReadAll(resp.Body)

		return fmt.Errorf("booruclient: unexpected status %d: %s", resp.StatusCode, raw)
	}
}

type errorBody struct {
	Name string `json:"name"`
}

// errDuplicateOrGeneric inspects the Booru's structured error name to
// distinguish a content-hash duplicate from any other 422.
func errDuplicateOrGeneric(resp *http.Response) error {
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		switch body.Name {
		case "PostAlreadyUploadedError":
			return ErrDuplicateContent
		case "TagAlreadyExistsError":
			return tagcache.ErrAlreadyExists
		}
	}

	return fmt.Errorf("booruclient: unprocessable entity: %s", body.Name)
}
