// Package assembly implements the per-field reset/append/commit state
// machine that reassembles symbol sequences into committed records. Each
// field buffer moves empty -> accumulating -> committed-and-cleared; guards
// reject commits against absent, empty, incomplete, or stale state.
package assembly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/beanlab/beanboard/pkg/ingest"
	"github.com/beanlab/beanboard/pkg/scores"
	"github.com/beanlab/beanboard/pkg/session"
	"github.com/beanlab/beanboard/pkg/symbol"
)

// Client protocol errors. All are terminal for the request; none is retried
// server-side.
var (
	// ErrBadSymbol rejects a symbol index outside the alphabet.
	ErrBadSymbol = errors.New("assembly: symbol index out of range")

	// ErrIncompleteIdentity rejects an identity commit before the buffer
	// holds a full fingerprint.
	ErrIncompleteIdentity = errors.New("assembly: identity buffer incomplete")

	// ErrNoHandshake rejects a field operation before the identity
	// handshake has completed.
	ErrNoHandshake = errors.New("assembly: identity handshake required")

	// ErrEmptyBuffer rejects a commit on an empty field buffer.
	ErrEmptyBuffer = errors.New("assembly: field buffer empty")

	// ErrStaleSession rejects a commit after TTL eviction or outside the
	// freshness window; the client must restart the handshake.
	ErrStaleSession = errors.New("assembly: session stale")
)

// Config tunes the assembler's guards.
type Config struct {
	// FreshnessWindow bounds how long after the identity handshake field
	// commits are accepted. Zero disables the guard; TTL eviction then
	// bounds staleness alone.
	FreshnessWindow time.Duration

	// DecodeMode selects strict or lenient symbol-sequence decoding.
	DecodeMode symbol.Mode
}

// Assembler drives the per-client assembly state machine over a session
// store and hands completed fields to the commit engine.
type Assembler struct {
	sessions session.Store
	engine   *ingest.Engine
	cfg      Config
	log      *slog.Logger
}

// New creates an assembler.
func New(sessions session.Store, engine *ingest.Engine, cfg Config, log *slog.Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		sessions: sessions,
		engine:   engine,
		cfg:      cfg,
		log:      log,
	}
}

// Reset clears the field's buffer. An identity reset starts a fresh
// handshake and is always allowed; name, time, and counter resets require a
// completed handshake since they stage data against the identity's key.
func (a *Assembler) Reset(ctx context.Context, clientKey string, f session.Field) error {
	return a.sessions.Update(ctx, clientKey, func(s *session.Session) error {
		if f != session.FieldIdentity && !s.HandshakeComplete() {
			return ErrNoHandshake
		}
		s.Reset(f)
		return nil
	})
}

// Append adds one symbol, by integer index, to the field's buffer. Index 64
// is the reserved terminator and ends the value; commits ignore anything
// buffered after it. The fixed-length identity field takes no terminator.
// Indexes outside the alphabet are a client error; appends past the buffer
// cap are tolerated no-ops so an over-sending client does not fail
// mid-sequence.
func (a *Assembler) Append(ctx context.Context, clientKey string, f session.Field, symIndex int) error {
	var c byte
	if symIndex == symbol.TerminatorIndex && f != session.FieldIdentity {
		c = symbol.Terminator
	} else {
		var err error
		c, err = symbol.Encode(symIndex)
		if err != nil {
			return fmt.Errorf("%w: %d", ErrBadSymbol, symIndex)
		}
	}

	return a.sessions.Update(ctx, clientKey, func(s *session.Session) error {
		if !s.Append(f, c) {
			a.log.DebugContext(ctx, "append past buffer cap dropped",
				"client", clientKey, "field", f.String(), "cap", f.Cap())
		}
		return nil
	})
}

// Commit finalizes the field's buffer. An identity commit asserts the
// handshake; other fields decode and hand off to the commit engine. The
// buffer is cleared only after the store confirms the write, so a failed
// commit stays retryable.
func (a *Assembler) Commit(ctx context.Context, clientKey string, f session.Field) error {
	sess, err := a.sessions.Get(ctx, clientKey)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if sess == nil {
		return ErrStaleSession
	}

	if f == session.FieldIdentity {
		return a.commitIdentity(ctx, clientKey)
	}
	return a.commitField(ctx, clientKey, f)
}

// commitIdentity asserts the handshake once the identity buffer is complete.
// The buffer is retained: it names the storage key for later field commits.
func (a *Assembler) commitIdentity(ctx context.Context, clientKey string) error {
	return a.sessions.Update(ctx, clientKey, func(s *session.Session) error {
		if len(s.Identity) != session.IdentityCap {
			return ErrIncompleteIdentity
		}
		s.HandshakeAt = time.Now()
		return nil
	})
}

func (a *Assembler) commitField(ctx context.Context, clientKey string, f session.Field) error {
	return a.sessions.Update(ctx, clientKey, func(s *session.Session) error {
		if err := a.guardCommit(s); err != nil {
			return err
		}

		buf := s.Buffer(f)
		if i := bytes.IndexByte(buf, symbol.Terminator); i >= 0 {
			buf = buf[:i]
		}
		if len(buf) == 0 {
			return ErrEmptyBuffer
		}

		key := ingest.DeriveKey(s.Identity)
		var err error
		switch f {
		case session.FieldName:
			err = a.engine.CommitName(ctx, key, string(buf))
		case session.FieldTime:
			var ms int64
			ms, err = symbol.DecodeSequence(string(buf), session.TimeCap, scores.ScoreCap, a.cfg.DecodeMode)
			if err == nil {
				err = a.engine.CommitTime(ctx, key, ms)
			}
		case session.FieldCounter:
			var v int64
			v, err = symbol.DecodeSequence(string(buf), session.CounterCap, scores.ScoreCap, a.cfg.DecodeMode)
			if err == nil {
				err = a.engine.CommitCounter(ctx, key, v)
			}
		}
		if err != nil {
			return err
		}

		// Single-use: clear only after the confirmed write.
		s.Reset(f)
		return nil
	})
}

// CommitWorld stores the world tag for the session's identity. The tag
// travels in-band rather than as symbols, so there is no buffer to clear.
func (a *Assembler) CommitWorld(ctx context.Context, clientKey, tag string) error {
	sess, err := a.sessions.Get(ctx, clientKey)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if sess == nil {
		return ErrStaleSession
	}

	return a.sessions.Update(ctx, clientKey, func(s *session.Session) error {
		if err := a.guardCommit(s); err != nil {
			return err
		}

		tag = ingest.SanitizeWorld(tag)
		if err := a.engine.CommitWorld(ctx, ingest.DeriveKey(s.Identity), tag); err != nil {
			return err
		}
		s.World = tag
		return nil
	})
}

// guardCommit enforces the shared commit preconditions: completed handshake
// and, when configured, the freshness window since the handshake.
func (a *Assembler) guardCommit(s *session.Session) error {
	if !s.HandshakeComplete() {
		return ErrNoHandshake
	}
	if a.cfg.FreshnessWindow > 0 && time.Since(s.HandshakeAt) > a.cfg.FreshnessWindow {
		return ErrStaleSession
	}
	return nil
}
