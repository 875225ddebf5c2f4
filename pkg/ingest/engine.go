// Package ingest implements the commit/merge engine: it maps assembled
// session fields onto persistent-store upserts under the declared per-field
// merge policies.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/beanlab/beanboard/pkg/scores"
)

// Engine commits assembled fields into the scores store. Display name and
// world tag use replace policy; time and counter use monotonic-max (the
// store enforces the max merge, so reordered or retried commits converge).
type Engine struct {
	store scores.Store
	log   *slog.Logger
}

// New creates an engine over a scores store.
func New(store scores.Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, log: log}
}

// DeriveKey maps an assembled identity buffer to the stable storage key.
// The fingerprint is already a compact stable value chosen by the client
// protocol, so it is used directly.
func DeriveKey(identity []byte) string {
	return string(identity)
}

// SanitizeName normalizes a raw display name for storage: NFC normalization,
// control and non-printable runes dropped, surrounding whitespace trimmed,
// length capped at scores.NameMax runes.
func SanitizeName(raw string) string {
	return sanitize(raw, scores.NameMax)
}

// SanitizeWorld normalizes a raw world tag, capped at scores.WorldMax runes.
func SanitizeWorld(raw string) string {
	return sanitize(raw, scores.WorldMax)
}

func sanitize(raw string, maxRunes int) string {
	var b strings.Builder
	for _, r := range norm.NFC.String(raw) {
		if unicode.IsControl(r) || !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
	}

	out := strings.TrimSpace(b.String())
	runes := []rune(out)
	if len(runes) > maxRunes {
		out = string(runes[:maxRunes])
	}
	return out
}

// CommitName sanitizes and stores a display name. The store reconciles any
// row holding the same (world, name) under a different key.
func (e *Engine) CommitName(ctx context.Context, key, rawName string) error {
	name := SanitizeName(rawName)
	if err := e.store.UpsertName(ctx, key, name); err != nil {
		return err
	}
	e.log.DebugContext(ctx, "committed display name", "key", key, "name", name)
	return nil
}

// CommitWorld sanitizes and stores a world tag.
func (e *Engine) CommitWorld(ctx context.Context, key, rawTag string) error {
	tag := SanitizeWorld(rawTag)
	if err := e.store.UpsertWorld(ctx, key, tag); err != nil {
		return err
	}
	e.log.DebugContext(ctx, "committed world tag", "key", key, "world", tag)
	return nil
}

// CommitTime merges an elapsed-time value under monotonic-max.
func (e *Engine) CommitTime(ctx context.Context, key string, ms int64) error {
	if err := e.store.UpsertTime(ctx, key, scores.ClampScore(ms)); err != nil {
		return err
	}
	e.log.DebugContext(ctx, "committed elapsed time", "key", key, "ms", ms)
	return nil
}

// CommitCounter merges a bean counter value under monotonic-max.
func (e *Engine) CommitCounter(ctx context.Context, key string, v int64) error {
	if err := e.store.UpsertCounter(ctx, key, scores.ClampScore(v)); err != nil {
		return err
	}
	e.log.DebugContext(ctx, "committed counter", "key", key, "value", v)
	return nil
}
