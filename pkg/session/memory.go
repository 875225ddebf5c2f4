package session

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is the inactivity window after which a session is reclaimed.
const DefaultTTL = 10 * time.Minute

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 30 * time.Second

// entry pairs a session with its mutation lock. The store-level lock only
// guards the map; session mutation serializes on the per-entry lock so
// distinct clients never contend. Expiry checks read LastActiveAt under the
// per-entry lock too, since Update and Touch write it holding only that lock.
type entry struct {
	mu   sync.Mutex
	sess *Session
}

// lastActive reads LastActiveAt under the entry lock.
func (e *entry) lastActive() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.LastActiveAt
}

// MemoryStore implements Store with an in-memory map and TTL-based
// reclamation.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryStore creates an in-memory session store. A ttl <= 0 selects
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}
}

// lookup returns the live entry for key, or nil if absent or expired.
func (s *MemoryStore) lookup(key string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if time.Since(e.lastActive()) > s.ttl {
		return nil
	}
	return e
}

// getOrCreate returns the entry for key, creating it if absent. An expired
// entry that has not yet been swept is replaced with a fresh session.
func (s *MemoryStore) getOrCreate(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if ok && time.Since(e.lastActive()) <= s.ttl {
		return e
	}

	now := time.Now()
	e = &entry{sess: &Session{
		Key:          key,
		CreatedAt:    now,
		LastActiveAt: now,
	}}
	s.entries[key] = e
	return e
}

// Get retrieves a session by key. Returns nil, nil if absent or expired.
func (s *MemoryStore) Get(_ context.Context, key string) (*Session, error) {
	e := s.lookup(key)
	if e == nil {
		return nil, nil //nolint:nilnil // Store contract: nil,nil for absent or expired
	}
	return e.sess, nil
}

// GetOrCreate retrieves a session, creating an empty one if absent.
func (s *MemoryStore) GetOrCreate(_ context.Context, key string) (*Session, error) {
	return s.getOrCreate(key).sess, nil
}

// Update runs fn with exclusive access to the session for key. The session
// is created if absent. LastActiveAt is refreshed only when fn succeeds.
func (s *MemoryStore) Update(_ context.Context, key string, fn func(*Session) error) error {
	e := s.getOrCreate(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(e.sess); err != nil {
		return err
	}
	e.sess.LastActiveAt = time.Now()
	return nil
}

// Touch refreshes LastActiveAt for a live session. Touching an absent or
// expired session is a no-op.
func (s *MemoryStore) Touch(_ context.Context, key string) error {
	e := s.lookup(key)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.LastActiveAt = time.Now()
	return nil
}

// Sweep removes sessions idle past the TTL and returns how many.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if time.Since(e.lastActive()) > s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of tracked sessions, expired-but-unswept included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartSweepRoutine starts a background goroutine that periodically reclaims
// idle sessions. The goroutine is stopped when Close is called.
func (s *MemoryStore) StartSweepRoutine(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = s.Sweep(ctx)
			}
		}
	}()
}

// Close stops the sweep goroutine and waits for it to exit. Safe to call
// even if StartSweepRoutine was never called.
func (s *MemoryStore) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
