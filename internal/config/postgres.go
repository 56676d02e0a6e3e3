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

// Package config loads the runtime-mutable GlobalConfig and the
// per-owner UserConfig from Postgres. Unlike the job store, both are
// read-mostly and small enough that every job reads them fresh at
// claim time rather than subscribing to change events.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

// ErrNotFound is returned when a user row does not exist for the given
// owner key.
var ErrNotFound = errors.New("config: not found")

// globalSettingsID is the id of the single-row global_settings table;
// there is exactly one tenant-wide configuration, not one per owner.
const globalSettingsID = 1

// DB abstracts the subset of *pgxpool.Pool this package calls, mirroring
// internal/jobstore's DB interface so tests can substitute a fake pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgxResultTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// pgxResultTag mirrors pgconn.CommandTag's RowsAffected method.
type pgxResultTag interface {
	RowsAffected() int64
}

type poolAdapter struct{ pool *pgxpool.Pool }

func (p poolAdapter) Exec(ctx context.Context, sql string, args ...any) (pgxResultTag, error) {
	tag, err := p.pool.Exec(ctx, sql, args...)

	return tag, err
}

func (p poolAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p poolAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

// Store is the Postgres-backed GlobalConfig/UserConfig loader.
type Store struct {
	db      DB
	cryptor *Cryptor
}

// NewStore connects to Postgres and returns a ready Store. cryptor
// decrypts/encrypts the booru_token and site_credentials columns.
func NewStore(ctx context.Context, connString string, cryptor *Cryptor) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("config: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("config: ping: %w", err)
	}

	return &Store{db: poolAdapter{pool: pool}, cryptor: cryptor}, nil
}

// newStoreWithDB builds a Store over any DB implementation, such as a
// fake pool, instead of dialing Postgres.
func newStoreWithDB(db DB, cryptor *Cryptor) *Store {
	return &Store{db: db, cryptor: cryptor}
}

// LoadGlobalConfig reads the single tenant-wide configuration row.
func (s *Store) LoadGlobalConfig(ctx context.Context) (ingestmodel.GlobalConfig, error) {
	var (
		cfg               ingestmodel.GlobalConfig
		downloadTimeout   int
		videoTimeout      int
		retryDelay        int
		categoryMappingJS []byte
	)

	err := s.db.QueryRow(ctx, `
		SELECT wd14_enabled, wd14_confidence_threshold, wd14_max_tags, wd14_model,
			worker_concurrency, download_timeout_seconds, video_timeout_seconds,
			max_retries, retry_delay_seconds, category_mapping
		FROM global_settings WHERE id = $1`, globalSettingsID,
	).Scan(
		&cfg.WD14Enabled, &cfg.WD14ConfidenceThreshold, &cfg.WD14MaxTags, &cfg.WD14Model,
		&cfg.WorkerConcurrency, &downloadTimeout, &videoTimeout,
		&cfg.MaxRetries, &retryDelay, &categoryMappingJS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingestmodel.GlobalConfig{}, ErrNotFound
	}
	if err != nil {
		return ingestmodel.GlobalConfig{}, fmt.Errorf("config: load global config: %w", err)
	}

	cfg.DownloadTimeout = time.Duration(downloadTimeout) * time.Second
	cfg.VideoTimeout = time.Duration(videoTimeout) * time.Second
	cfg.RetryDelay = time.Duration(retryDelay) * time.Second

	mapping := ingestmodel.CategoryMapping{}
	if len(categoryMappingJS) > 0 {
		if err := json.Unmarshal(categoryMappingJS, &mapping); err != nil {
			return ingestmodel.GlobalConfig{}, fmt.Errorf("config: decode category mapping: %w", err)
		}
	}
	cfg.CategoryMapping = mapping

	return cfg, nil
}

// UpdateGlobalConfig replaces the single global_settings row. Called by
// the settings API; the next job to claim picks
// it up, in-flight jobs keep whatever they loaded at start.
func (s *Store) UpdateGlobalConfig(ctx context.Context, cfg ingestmodel.GlobalConfig) error {
	mapping := cfg.CategoryMapping
	if mapping == nil {
		mapping = ingestmodel.CategoryMapping{}
	}
	mappingJS, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("config: encode category mapping: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO global_settings (
			id, wd14_enabled, wd14_confidence_threshold, wd14_max_tags, wd14_model,
			worker_concurrency, download_timeout_seconds, video_timeout_seconds,
			max_retries, retry_delay_seconds, category_mapping
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			wd14_enabled = excluded.wd14_enabled,
			wd14_confidence_threshold = excluded.wd14_confidence_threshold,
			wd14_max_tags = excluded.wd14_max_tags,
			wd14_model = excluded.wd14_model,
			worker_concurrency = excluded.worker_concurrency,
			download_timeout_seconds = excluded.download_timeout_seconds,
			video_timeout_seconds = excluded.video_timeout_seconds,
			max_retries = excluded.max_retries,
			retry_delay_seconds = excluded.retry_delay_seconds,
			category_mapping = excluded.category_mapping`,
		globalSettingsID, cfg.WD14Enabled, cfg.WD14ConfidenceThreshold, cfg.WD14MaxTags, cfg.WD14Model,
		cfg.WorkerConcurrency, int(cfg.DownloadTimeout/time.Second), int(cfg.VideoTimeout/time.Second),
		cfg.MaxRetries, int(cfg.RetryDelay/time.Second), mappingJS,
	)
	if err != nil {
		return fmt.Errorf("config: update global config: %w", err)
	}

	return nil
}

// LoadUserConfig reads and decrypts one owner's Booru credentials and
// per-site credentials.
func (s *Store) LoadUserConfig(ctx context.Context, owner string) (ingestmodel.UserConfig, error) {
	cfg := ingestmodel.UserConfig{Owner: owner}

	var encryptedToken string
	err := s.db.QueryRow(ctx, `
		SELECT booru_base_url, booru_username, booru_token_encrypted
		FROM users WHERE owner = $1`, owner,
	).Scan(&cfg.BooruBaseURL, &cfg.BooruUsername, &encryptedToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingestmodel.UserConfig{}, ErrNotFound
	}
	if err != nil {
		return ingestmodel.UserConfig{}, fmt.Errorf("config: load user: %w", err)
	}

	token, err := s.cryptor.Decrypt(encryptedToken)
	if err != nil {
		return ingestmodel.UserConfig{}, fmt.Errorf("config: decrypt booru token: %w", err)
	}
	cfg.BooruToken = token

	creds, err := s.loadSiteCredentials(ctx, owner)
	if err != nil {
		return ingestmodel.UserConfig{}, err
	}
	cfg.SiteCredentials = creds

	return cfg, nil
}

func (s *Store) loadSiteCredentials(ctx context.Context, owner string) (map[string]map[string]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT handler, cred_key, cred_value_encrypted
		FROM site_credentials WHERE owner = $1`, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("config: load site credentials: %w", err)
	}
	defer rows.Close()

	out := map[string]map[string]string{}
	for rows.Next() {
		var handler, key, encryptedValue string
		if err := rows.Scan(&handler, &key, &encryptedValue); err != nil {
			return nil, fmt.Errorf("config: scan site credential: %w", err)
		}
		value, err := s.cryptor.Decrypt(encryptedValue)
		if err != nil {
			return nil, fmt.Errorf("config: decrypt site credential %s/%s: %w", handler, key, err)
		}
		if out[handler] == nil {
			out[handler] = map[string]string{}
		}
		out[handler][key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("config: site credential rows: %w", err)
	}

	return out, nil
}

// UpsertUser encrypts and stores one owner's Booru credentials.
func (s *Store) UpsertUser(ctx context.Context, cfg ingestmodel.UserConfig) error {
	encryptedToken, err := s.cryptor.Encrypt(cfg.BooruToken)
	if err != nil {
		return fmt.Errorf("config: encrypt booru token: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO users (owner, booru_base_url, booru_username, booru_token_encrypted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner) DO UPDATE SET
			booru_base_url = excluded.booru_base_url,
			booru_username = excluded.booru_username,
			booru_token_encrypted = excluded.booru_token_encrypted`,
		cfg.Owner, cfg.BooruBaseURL, cfg.BooruUsername, encryptedToken,
	)
	if err != nil {
		return fmt.Errorf("config: upsert user: %w", err)
	}

	return nil
}

// SetSiteCredential encrypts and stores a single handler/key credential
// for owner, replacing any prior value.
func (s *Store) SetSiteCredential(ctx context.Context, owner, handler, key, value string) error {
	encryptedValue, err := s.cryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("config: encrypt site credential: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO site_credentials (owner, handler, cred_key, cred_value_encrypted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, handler, cred_key) DO UPDATE SET
			cred_value_encrypted = excluded.cred_value_encrypted`,
		owner, handler, key, encryptedValue,
	)
	if err != nil {
		return fmt.Errorf("config: set site credential: %w", err)
	}

	return nil
}

// DeleteUser removes an owner's credentials and site credentials.
func (s *Store) DeleteUser(ctx context.Context, owner string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM users WHERE owner = $1", owner)
	if err != nil {
		return fmt.Errorf("config: delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM site_credentials WHERE owner = $1", owner); err != nil {
		return fmt.Errorf("config: delete site credentials: %w", err)
	}

	return nil
}
