// Package scores defines the durable leaderboard record and the storage
// contract its backends implement.
package scores

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Field limits enforced at the storage boundary.
const (
	NameMax  = 24
	WorldMax = 64

	// ScoreCap bounds both score fields; values saturate here.
	ScoreCap = int64(10_000_000_000_000) // 10^13
)

// DefaultTopLimit is the leaderboard page size when none is requested.
const DefaultTopLimit = 100

// MaxTopLimit caps leaderboard queries.
const MaxTopLimit = 2000

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("scores: record not found")

// Record is the durable projection of a player's committed fields.
type Record struct {
	// Key is the stable storage key derived from the assembled identity
	// fingerprint.
	Key string

	// DisplayName is the sanitized player name. Replace policy.
	DisplayName string

	// WorldID is the originating world tag. Replace policy.
	WorldID string

	// TotalElapsedMs is the primary score. Monotonic-max policy: it never
	// regresses across commits.
	TotalElapsedMs int64

	// CounterValue is the secondary "beans" score. Monotonic-max policy.
	CounterValue int64

	// UpdatedAt is refreshed by every successful commit.
	UpdatedAt time.Time
}

// StorageError wraps an underlying store failure. Callers must treat it as
// transient and leave the producing session buffer unconsumed so the client
// can retry the commit.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("scores: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError for operation op.
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ClampScore bounds a score value into [0, ScoreCap].
func ClampScore(v int64) int64 {
	if v < 0 {
		return 0
	}
	if v > ScoreCap {
		return ScoreCap
	}
	return v
}

// ClampLimit bounds a leaderboard limit into [1, MaxTopLimit], defaulting
// when unset.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultTopLimit
	}
	if limit > MaxTopLimit {
		return MaxTopLimit
	}
	return limit
}

// Store is the persistent scores contract. All upserts are atomic
// insert-or-merge operations that refresh UpdatedAt.
type Store interface {
	// UpsertName sets the display name (replace policy) and reconciles any
	// other row holding the same (world, name) pair under a different key:
	// the surviving row keeps the maximum of both rows' score fields and the
	// superseded row is deleted, all in one transaction.
	UpsertName(ctx context.Context, key, name string) error

	// UpsertWorld sets the world tag (replace policy).
	UpsertWorld(ctx context.Context, key, world string) error

	// UpsertTime merges the elapsed-time score (monotonic-max policy).
	UpsertTime(ctx context.Context, key string, ms int64) error

	// UpsertCounter merges the bean counter (monotonic-max policy).
	UpsertCounter(ctx context.Context, key string, v int64) error

	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Record, error)

	// TopN returns up to limit records ordered by TotalElapsedMs then
	// CounterValue, both descending, optionally filtered by world.
	TopN(ctx context.Context, limit int, world string) ([]Record, error)

	// Delete removes the record for key. Administrative use only.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
