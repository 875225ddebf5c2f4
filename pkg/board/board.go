// Package board projects stored score records into ranked leaderboard
// views: a structured list for programmatic consumers and a fixed-width
// text rendering for in-world display.
package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/beanlab/beanboard/pkg/scores"
)

// Entry is one ranked leaderboard row.
type Entry struct {
	Rank           int    `json:"rank"`
	DisplayName    string `json:"displayName"`
	WorldID        string `json:"worldId,omitempty"`
	TotalElapsedMs int64  `json:"totalElapsedMs"`
	CounterValue   int64  `json:"counterValue"`
}

// Projector reads ranked records out of a scores store.
type Projector struct {
	store scores.Store
}

// New creates a projector over a scores store.
func New(store scores.Store) *Projector {
	return &Projector{store: store}
}

// TopN returns up to limit entries ordered descending by total time then
// counter, optionally filtered by world. Order among exact ties is
// unspecified and must not be relied upon.
func (p *Projector) TopN(ctx context.Context, limit int, world string) ([]Entry, error) {
	records, err := p.store.TopN(ctx, scores.ClampLimit(limit), world)
	if err != nil {
		return nil, fmt.Errorf("projecting leaderboard: %w", err)
	}

	entries := make([]Entry, len(records))
	for i, rec := range records {
		entries[i] = Entry{
			Rank:           i + 1,
			DisplayName:    rec.DisplayName,
			WorldID:        rec.WorldID,
			TotalElapsedMs: rec.TotalElapsedMs,
			CounterValue:   rec.CounterValue,
		}
	}
	return entries, nil
}

// FormatElapsed renders a millisecond total as HH:MM:SS:mmm with 2/2/2/3
// zero-padded digits. The hours field grows past two digits as needed.
func FormatElapsed(ms int64) string {
	if ms < 0 {
		ms = 0
	}

	msec := ms % 1000
	sec := (ms / 1000) % 60
	min := (ms / 60_000) % 60
	hours := ms / 3_600_000

	return fmt.Sprintf("%02d:%02d:%02d:%03d", hours, min, sec, msec)
}

// RenderLine renders one entry in the in-world line format.
func RenderLine(e Entry) string {
	return fmt.Sprintf("[%s] : %s | %d", e.DisplayName, FormatElapsed(e.TotalElapsedMs), e.CounterValue)
}

// RenderText renders entries as newline-terminated text lines.
func RenderText(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(RenderLine(e))
		b.WriteByte('\n')
	}
	return b.String()
}

// TopNText is the convenience read path used by the text endpoint and the
// static mirror.
func (p *Projector) TopNText(ctx context.Context, limit int, world string) (string, error) {
	entries, err := p.TopN(ctx, limit, world)
	if err != nil {
		return "", err
	}
	return RenderText(entries), nil
}
