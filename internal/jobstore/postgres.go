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

package jobstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boorudev/ingestpipe/internal/ingestmodel"
)

// DB abstracts the subset of *pgxpool.Pool this package calls, so unit
// tests can substitute a fake pool without dragging in a live Postgres
// instance.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgxResultTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// pgxResultTag mirrors pgconn.CommandTag's RowsAffected method, the
// only part callers need.
type pgxResultTag interface {
	RowsAffected() int64
}

// poolAdapter lets a *pgxpool.Pool satisfy DB without a type alias war;
// pgxpool.Pool.Exec already returns pgconn.CommandTag which implements
// RowsAffected, so this is a thin pass-through.
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

func (p poolAdapter) Begin(ctx context.Context) (pgx.Tx, error) {
	return p.pool.Begin(ctx)
}

// PostgresStore is the Store implementation backed by Postgres.
type PostgresStore struct {
	db DB
}

// NewPostgresStore connects to Postgres and returns a ready Store.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("jobstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("jobstore: ping: %w", err)
	}

	return &PostgresStore{db: poolAdapter{pool: pool}}, nil
}

// newPostgresStoreWithDB is used by tests to inject a fake DB.
func newPostgresStoreWithDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, draft JobDraft) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.Exec(ctx, `
		INSERT INTO jobs (id, status, job_type, url, original_filename, source_override,
			initial_tags, safety, skip_tagging, owner, target_post_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, ingestmodel.StatusPending, draft.JobType, draft.URL, draft.OriginalFilename,
		draft.SourceOverride, draft.InitialTags, safetyOrDefault(draft.Safety), draft.SkipTagging,
		draft.Owner, draft.TargetPostID,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("jobstore: create: %w", err)
	}

	return id, nil
}

func safetyOrDefault(s ingestmodel.Safety) ingestmodel.Safety {
	if s == "" {
		return ingestmodel.SafetyUnsafe
	}

	return s
}

// ClaimNext atomically selects the oldest pending job, skipping rows
// already locked by a concurrent claimant, marks it downloading, and
// returns it. The select + update happen in one transaction so no two
// workers can ever observe the same job as claimable.
func (s *PostgresStore) ClaimNext(ctx context.Context, workerID string) (*ingestmodel.Job, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobstore: claim: begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.WarnContext(ctx, "jobstore: claim rollback failed", "error", rbErr)
		}
	}()

	row := tx.QueryRow(ctx, `
		UPDATE jobs SET status = $1, updated_at = now()
		WHERE id = (
			SELECT id FROM jobs WHERE status = $2
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+jobColumns,
		ingestmodel.StatusDownloading, ingestmodel.StatusPending,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: claim: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("jobstore: claim: commit: %w", err)
	}

	slog.InfoContext(ctx, "claimed job", "job_id", job.ID, "worker_id", workerID)

	return job, nil
}

func (s *PostgresStore) Update(ctx context.Context, id uuid.UUID, mut Mutations) error {
	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if mut.Status != nil {
		add("status", *mut.Status)
	}
	if mut.SzuruPostID != nil {
		add("szuru_post_id", *mut.SzuruPostID)
	}
	if mut.RelatedPostIDs != nil {
		add("related_post_ids", mut.RelatedPostIDs)
	}
	if mut.WasMerge != nil {
		add("was_merge", *mut.WasMerge)
	}
	if mut.ErrorMessage != nil {
		add("error_message", ingestmodel.TruncateError(*mut.ErrorMessage))
	}
	if mut.RetryCount != nil {
		add("retry_count", *mut.RetryCount)
	}
	if mut.TagsApplied != nil {
		add("tags_applied", mut.TagsApplied)
	}
	if mut.TagsFromSource != nil {
		add("tags_from_source", mut.TagsFromSource)
	}
	if mut.TagsFromAI != nil {
		add("tags_from_ai", mut.TagsFromAI)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE jobs SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("jobstore: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStore) ObserveStatus(ctx context.Context, id uuid.UUID) (ingestmodel.Status, error) {
	var status ingestmodel.Status
	err := s.db.QueryRow(ctx, "SELECT status FROM jobs WHERE id = $1", id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("jobstore: observe status: %w", err)
	}

	return status, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*ingestmodel.Job, error) {
	row := s.db.QueryRow(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: get: %w", err)
	}

	return job, nil
}

// List returns a page of jobs matching filter, a next-page token (empty
// when exhausted), and the total matching count.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]ingestmodel.Job, string, int, error) {
	pageSize := clampPageSize(filter.PageSize)

	where := []string{"owner = $1"}
	args := []any{filter.Owner}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.WasMerge != nil {
		args = append(args, *filter.WasMerge)
		where = append(where, fmt.Sprintf("was_merge = $%d", len(args)))
	}

	if filter.PageToken != "" {
		createdAt, id, err := decodePageToken(filter.PageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("jobstore: list: %w", err)
		}
		args = append(args, createdAt, id)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	var total int
	countQuery := "SELECT count(*) FROM jobs WHERE " + strings.Join(where, " AND ")
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, "", 0, fmt.Errorf("jobstore: list count: %w", err)
	}

	args = append(args, pageSize+1)
	listQuery := fmt.Sprintf(
		"SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d",
		jobColumns, strings.Join(where, " AND "), len(args),
	)
	rows, err := s.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, "", 0, fmt.Errorf("jobstore: list: %w", err)
	}
	defer rows.Close()

	var out []ingestmodel.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, "", 0, fmt.Errorf("jobstore: list scan: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, "", 0, fmt.Errorf("jobstore: list rows: %w", err)
	}

	var next string
	if len(out) > pageSize {
		last := out[pageSize-1]
		next = encodePageToken(last.CreatedAt, last.ID)
		out = out[:pageSize]
	}

	return out, next, total, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM jobs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("jobstore: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

const jobColumns = `id, status, job_type, url, original_filename, source_override, initial_tags,
	safety, skip_tagging, owner, target_post_id, szuru_post_id, related_post_ids, was_merge,
	error_message, retry_count, created_at, updated_at, tags_applied, tags_from_source, tags_from_ai`

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*ingestmodel.Job, error) {
	var j ingestmodel.Job
	err := row.Scan(
		&j.ID, &j.Status, &j.JobType, &j.URL, &j.OriginalFilename, &j.SourceOverride, &j.InitialTags,
		&j.Safety, &j.SkipTagging, &j.Owner, &j.TargetPostID, &j.SzuruPostID, &j.RelatedPostIDs, &j.WasMerge,
		&j.ErrorMessage, &j.RetryCount, &j.CreatedAt, &j.UpdatedAt, &j.TagsApplied, &j.TagsFromSource, &j.TagsFromAI,
	)
	if err != nil {
		return nil, err
	}

	return &j, nil
}

func encodePageToken(createdAt time.Time, id uuid.UUID) string {
	raw := fmt.Sprintf("%d|%s", createdAt.UnixNano(), id.String())

	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodePageToken(token string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid page token: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid page token shape")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid page token timestamp: %w", err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid page token id: %w", err)
	}

	return time.Unix(0, nanos), id, nil
}
