// Package sqlite provides an embedded SQLite backend for leaderboard
// records, for deployments that run without a PostgreSQL server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/beanlab/beanboard/pkg/scores"
)

// scoreColumns lists columns returned by SELECT queries in scan order.
var scoreColumns = []string{
	"player_key", "display_name", "world_id",
	"total_elapsed_ms", "counter_value", "updated_at",
}

const schema = `
	CREATE TABLE IF NOT EXISTS scores (
		player_key       TEXT PRIMARY KEY,
		display_name     TEXT NOT NULL DEFAULT '',
		world_id         TEXT NOT NULL DEFAULT '',
		total_elapsed_ms INTEGER NOT NULL DEFAULT 0,
		counter_value    INTEGER NOT NULL DEFAULT 0,
		updated_at       TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scores_rank
		ON scores (total_elapsed_ms DESC, counter_value DESC);
	CREATE INDEX IF NOT EXISTS idx_scores_world
		ON scores (world_id);
`

// Store implements scores.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent commits.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

const upsertNameQuery = `
	INSERT INTO scores (player_key, display_name, world_id, total_elapsed_ms, counter_value, updated_at)
	VALUES (?, ?, '', 0, 0, ?)
	ON CONFLICT(player_key) DO UPDATE SET
		display_name = excluded.display_name,
		updated_at = excluded.updated_at
`

const dupMaxQuery = `
	SELECT COALESCE(MAX(total_elapsed_ms), 0), COALESCE(MAX(counter_value), 0), COUNT(*)
	FROM scores
	WHERE display_name = ? AND world_id = ? AND player_key <> ?
`

const absorbDupQuery = `
	UPDATE scores SET
		total_elapsed_ms = MAX(total_elapsed_ms, ?),
		counter_value = MAX(counter_value, ?),
		updated_at = ?
	WHERE player_key = ?
`

const deleteDupQuery = `
	DELETE FROM scores
	WHERE display_name = ? AND world_id = ? AND player_key <> ?
`

// UpsertName sets the display name and folds any row holding the same
// (world, name) pair under a different key into this one, transactionally.
func (s *Store) UpsertName(ctx context.Context, key, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scores.NewStorageError("beginning name upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, upsertNameQuery, key, name, now); err != nil {
		return scores.NewStorageError("upserting display name", err)
	}

	var world string
	if err := tx.QueryRowContext(ctx,
		"SELECT world_id FROM scores WHERE player_key = ?", key).Scan(&world); err != nil {
		return scores.NewStorageError("reading world for reconcile", err)
	}

	var maxTime, maxCounter int64
	var dupes int
	if err := tx.QueryRowContext(ctx, dupMaxQuery, name, world, key).
		Scan(&maxTime, &maxCounter, &dupes); err != nil {
		return scores.NewStorageError("scanning duplicate rows", err)
	}

	if dupes > 0 {
		if _, err := tx.ExecContext(ctx, absorbDupQuery, maxTime, maxCounter, now, key); err != nil {
			return scores.NewStorageError("absorbing duplicate scores", err)
		}
		if _, err := tx.ExecContext(ctx, deleteDupQuery, name, world, key); err != nil {
			return scores.NewStorageError("deleting superseded rows", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return scores.NewStorageError("committing name upsert", err)
	}
	return nil
}

const upsertWorldQuery = `
	INSERT INTO scores (player_key, display_name, world_id, total_elapsed_ms, counter_value, updated_at)
	VALUES (?, '', ?, 0, 0, ?)
	ON CONFLICT(player_key) DO UPDATE SET
		world_id = excluded.world_id,
		updated_at = excluded.updated_at
`

// UpsertWorld sets the world tag (replace policy).
func (s *Store) UpsertWorld(ctx context.Context, key, world string) error {
	if _, err := s.db.ExecContext(ctx, upsertWorldQuery, key, world, time.Now().UTC()); err != nil {
		return scores.NewStorageError("upserting world tag", err)
	}
	return nil
}

const upsertTimeQuery = `
	INSERT INTO scores (player_key, display_name, world_id, total_elapsed_ms, counter_value, updated_at)
	VALUES (?, '', '', ?, 0, ?)
	ON CONFLICT(player_key) DO UPDATE SET
		total_elapsed_ms = MAX(total_elapsed_ms, excluded.total_elapsed_ms),
		updated_at = excluded.updated_at
`

// UpsertTime merges the elapsed-time score under monotonic-max.
func (s *Store) UpsertTime(ctx context.Context, key string, ms int64) error {
	if _, err := s.db.ExecContext(ctx, upsertTimeQuery, key, scores.ClampScore(ms), time.Now().UTC()); err != nil {
		return scores.NewStorageError("upserting elapsed time", err)
	}
	return nil
}

const upsertCounterQuery = `
	INSERT INTO scores (player_key, display_name, world_id, total_elapsed_ms, counter_value, updated_at)
	VALUES (?, '', '', 0, ?, ?)
	ON CONFLICT(player_key) DO UPDATE SET
		counter_value = MAX(counter_value, excluded.counter_value),
		updated_at = excluded.updated_at
`

// UpsertCounter merges the bean counter under monotonic-max.
func (s *Store) UpsertCounter(ctx context.Context, key string, v int64) error {
	if _, err := s.db.ExecContext(ctx, upsertCounterQuery, key, scores.ClampScore(v), time.Now().UTC()); err != nil {
		return scores.NewStorageError("upserting counter", err)
	}
	return nil
}

// Get returns the record for key, or scores.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*scores.Record, error) {
	query, args, err := sq.Select(scoreColumns...).
		From("scores").
		Where(sq.Eq{"player_key": key}).
		ToSql()
	if err != nil {
		return nil, scores.NewStorageError("building get query", err)
	}

	var rec scores.Record
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&rec.Key,
		&rec.DisplayName,
		&rec.WorldID,
		&rec.TotalElapsedMs,
		&rec.CounterValue,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scores.ErrNotFound
	}
	if err != nil {
		return nil, scores.NewStorageError("querying record", err)
	}
	return &rec, nil
}

// TopN returns up to limit records ordered by total time then counter, both
// descending.
func (s *Store) TopN(ctx context.Context, limit int, world string) ([]scores.Record, error) {
	qb := sq.Select(scoreColumns...).
		From("scores").
		OrderBy("total_elapsed_ms DESC", "counter_value DESC").
		Limit(uint64(scores.ClampLimit(limit))) // #nosec G115 -- clamped to [1, 2000]
	if world != "" {
		qb = qb.Where(sq.Eq{"world_id": world})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, scores.NewStorageError("building topn query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, scores.NewStorageError("querying leaderboard", err)
	}
	defer func() { _ = rows.Close() }()

	var result []scores.Record
	for rows.Next() {
		var rec scores.Record
		if err := rows.Scan(
			&rec.Key,
			&rec.DisplayName,
			&rec.WorldID,
			&rec.TotalElapsedMs,
			&rec.CounterValue,
			&rec.UpdatedAt,
		); err != nil {
			return nil, scores.NewStorageError("scanning leaderboard row", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, scores.NewStorageError("iterating leaderboard rows", err)
	}

	if result == nil {
		result = []scores.Record{}
	}
	return result, nil
}

// Delete removes the record for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM scores WHERE player_key = ?", key)
	if err != nil {
		return scores.NewStorageError("deleting record", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return scores.ErrNotFound
	}
	return nil
}

// Ping verifies the database file is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return scores.NewStorageError("pinging database", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Verify interface compliance.
var _ scores.Store = (*Store)(nil)
