// Package postgres provides a PostgreSQL-backed implementation of
// [store.Store].
//
// Transcripts are stored as JSONB so the utterance list stays queryable with
// SQL when needed, without a separate utterances table.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	id, _ := st.Save(ctx, rec)
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/meetscribe/internal/store"
	"github.com/MrWong99/meetscribe/pkg/types"
)

var _ store.Store = (*Store)(nil)

const ddlRecordings = `
CREATE TABLE IF NOT EXISTS recordings (
    id           UUID         PRIMARY KEY,
    meeting_name TEXT         NOT NULL DEFAULT '',
    started_at   TIMESTAMPTZ  NOT NULL,
    duration_ns  BIGINT       NOT NULL DEFAULT 0,
    transcript   JSONB        NOT NULL,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_recordings_meeting_name
    ON recordings (meeting_name);

CREATE INDEX IF NOT EXISTS idx_recordings_started_at
    ON recordings (started_at);
`

// Store is the PostgreSQL-backed recording store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn
// and runs [Migrate] to ensure the recordings table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the recordings table and its indexes if they do not exist.
// It is idempotent and safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlRecordings); err != nil {
		return fmt.Errorf("postgres store: apply ddl: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save implements [store.Store]. An empty rec.ID gets a fresh UUID; a
// non-empty ID upserts the existing row.
func (s *Store) Save(ctx context.Context, rec store.Recording) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("postgres store: save: invalid id %q: %w", id, err)
	}

	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return "", fmt.Errorf("postgres store: save: marshal transcript: %w", err)
	}

	const q = `
		INSERT INTO recordings (id, meeting_name, started_at, duration_ns, transcript)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    meeting_name = EXCLUDED.meeting_name,
		    started_at   = EXCLUDED.started_at,
		    duration_ns  = EXCLUDED.duration_ns,
		    transcript   = EXCLUDED.transcript`

	_, err = s.pool.Exec(ctx, q,
		id,
		rec.MeetingName,
		rec.StartedAt,
		rec.Duration.Nanoseconds(),
		transcript,
	)
	if err != nil {
		return "", fmt.Errorf("postgres store: save: %w", err)
	}
	return id, nil
}

// Get implements [store.Store].
func (s *Store) Get(ctx context.Context, id string) (store.Recording, error) {
	const q = `
		SELECT id, meeting_name, started_at, duration_ns, transcript, created_at
		FROM   recordings
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return store.Recording{}, fmt.Errorf("postgres store: get: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, scanRecording)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Recording{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return store.Recording{}, fmt.Errorf("postgres store: get: %w", err)
	}
	return rec, nil
}

// List implements [store.Store]. Results are ordered by started_at descending.
func (s *Store) List(ctx context.Context, opts store.ListOpts) ([]store.Recording, error) {
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"TRUE"}
	if opts.MeetingName != "" {
		conditions = append(conditions, "meeting_name = "+next(opts.MeetingName))
	}
	if !opts.After.IsZero() {
		conditions = append(conditions, "started_at > "+next(opts.After))
	}
	if !opts.Before.IsZero() {
		conditions = append(conditions, "started_at < "+next(opts.Before))
	}

	q := "SELECT id, meeting_name, started_at, duration_ns, transcript, created_at\n" +
		"FROM   recordings\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY started_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecording)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: scan rows: %w", err)
	}
	if recs == nil {
		recs = []store.Recording{}
	}
	return recs, nil
}

// Delete implements [store.Store].
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM recordings WHERE id = $1", id); err != nil {
		return fmt.Errorf("postgres store: delete: %w", err)
	}
	return nil
}

// scanRecording scans a single recordings row, unmarshalling the JSONB
// transcript column.
func scanRecording(row pgx.CollectableRow) (store.Recording, error) {
	var (
		rec        store.Recording
		durationNS int64
		transcript []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.MeetingName,
		&rec.StartedAt,
		&durationNS,
		&transcript,
		&rec.CreatedAt,
	); err != nil {
		return store.Recording{}, err
	}
	rec.Duration = time.Duration(durationNS)

	var dt types.DiarizedTranscript
	if err := json.Unmarshal(transcript, &dt); err != nil {
		return store.Recording{}, fmt.Errorf("unmarshal transcript: %w", err)
	}
	rec.Transcript = dt
	return rec, nil
}
