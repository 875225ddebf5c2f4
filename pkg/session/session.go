// Package session manages per-client assembly sessions. A session is the
// process-local staging area where symbol sequences accumulate before a
// commit; it is never a source of truth for scoring, and a process restart
// dropping all in-flight sessions is an accepted loss boundary.
package session

import (
	"context"
	"time"
)

// Buffer caps. Appends beyond a cap are silent no-ops so an over-eager
// client does not error out mid-sequence.
const (
	IdentityCap = 8
	NameCap     = 24
	TimeCap     = 32
	CounterCap  = 32
	WorldCap    = 64
)

// Session holds the in-progress assembly buffers for one client.
type Session struct {
	// Key is the coarse client identity: a client-supplied session token
	// when present, else the client's network address.
	Key string

	// Identity accumulates the player fingerprint, exactly IdentityCap
	// symbols when complete.
	Identity []byte

	// Name accumulates the display name.
	Name []byte

	// Time accumulates the elapsed-time value's symbols.
	Time []byte

	// Counter accumulates the bean counter's symbols.
	Counter []byte

	// World is the last committed world tag for this session.
	World string

	// CreatedAt is when the session was first seen.
	CreatedAt time.Time

	// LastActiveAt is refreshed by every append, reset, or commit.
	LastActiveAt time.Time

	// HandshakeAt marks when the identity buffer was last asserted
	// complete. Zero until the first identity commit.
	HandshakeAt time.Time
}

// HandshakeComplete reports whether the identity buffer holds a full
// fingerprint.
func (s *Session) HandshakeComplete() bool {
	return len(s.Identity) == IdentityCap && !s.HandshakeAt.IsZero()
}

// appendCapped appends c to buf only while buf is below cap. Returns the
// buffer and whether the symbol was accepted.
func appendCapped(buf []byte, c byte, cap int) ([]byte, bool) {
	if len(buf) >= cap {
		return buf, false
	}
	return append(buf, c), true
}

// Store defines the session store contract. Update serializes mutation
// per key; operations on distinct keys proceed in parallel.
type Store interface {
	// Get retrieves a session by key. Returns nil, nil if absent or expired.
	Get(ctx context.Context, key string) (*Session, error)

	// GetOrCreate retrieves a session, creating an empty one if absent.
	GetOrCreate(ctx context.Context, key string) (*Session, error)

	// Update runs fn with exclusive access to the session for key, creating
	// the session if absent. LastActiveAt is refreshed after fn succeeds.
	Update(ctx context.Context, key string, fn func(*Session) error) error

	// Touch refreshes LastActiveAt without other mutation.
	Touch(ctx context.Context, key string) error

	// Sweep removes sessions idle past the TTL and returns how many.
	Sweep(ctx context.Context) (int, error)

	// Len reports the number of live sessions.
	Len() int

	// Close stops background routines and releases resources.
	Close() error
}
