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

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetClientPreferences returns owner's opaque client preference blob.
// The pipeline never reads this; it is round-tripped verbatim for the
// web client. An owner with no stored preferences gets an empty object.
func (s *Store) GetClientPreferences(ctx context.Context, owner string) (json.RawMessage, error) {
	var prefs []byte
	err := s.db.QueryRow(ctx,
		"SELECT preferences FROM client_preferences WHERE owner = $1", owner,
	).Scan(&prefs)
	if errors.Is(err, pgx.ErrNoRows) {
		return json.RawMessage("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: load client preferences: %w", err)
	}

	return prefs, nil
}

// SetClientPreferences replaces owner's preference blob.
func (s *Store) SetClientPreferences(ctx context.Context, owner string, prefs json.RawMessage) error {
	if !json.Valid(prefs) {
		return fmt.Errorf("config: client preferences are not valid JSON")
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO client_preferences (owner, preferences, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (owner) DO UPDATE SET
			preferences = excluded.preferences,
			updated_at = now()`,
		owner, []byte(prefs),
	)
	if err != nil {
		return fmt.Errorf("config: set client preferences: %w", err)
	}

	return nil
}
