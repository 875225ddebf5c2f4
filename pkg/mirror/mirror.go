// Package mirror periodically copies the rendered leaderboard to a static
// hosting endpoint. It is strictly best-effort: failures are logged and
// never reach the ingestion path.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/beanlab/beanboard/pkg/board"
)

// DefaultInterval is how often the mirror pushes when unconfigured.
const DefaultInterval = 5 * time.Minute

const requestTimeout = 30 * time.Second

// Config configures the mirror task.
type Config struct {
	// URL receives the rendered board via HTTP PUT. Empty disables the task.
	URL string

	// Interval between pushes. <= 0 selects DefaultInterval.
	Interval time.Duration

	// Limit and World scope the rendered board.
	Limit int
	World string
}

// Mirror pushes rendered leaderboard text to a static endpoint on a timer.
type Mirror struct {
	cfg       Config
	projector *board.Projector
	client    *http.Client
	log       *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a mirror task.
func New(cfg Config, projector *board.Projector, log *slog.Logger) *Mirror {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{
		cfg:       cfg,
		projector: projector,
		client:    &http.Client{Timeout: requestTimeout},
		log:       log,
	}
}

// Push renders the board and uploads it once.
func (m *Mirror) Push(ctx context.Context) error {
	text, err := m.projector.TopNText(ctx, m.cfg.Limit, m.cfg.World)
	if err != nil {
		return fmt.Errorf("rendering board for mirror: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, m.cfg.URL, strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("building mirror request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("uploading mirror: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("uploading mirror: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Start launches the periodic push goroutine. A mirror with no URL is a
// no-op. The goroutine is stopped by Close.
func (m *Mirror) Start() {
	if m.cfg.URL == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Push(ctx); err != nil {
					m.log.Warn("mirror push failed", "url", m.cfg.URL, "error", err)
				}
			}
		}
	}()
}

// Close stops the push goroutine and waits for it to exit. Safe to call
// even if Start was never called or the mirror is disabled.
func (m *Mirror) Close() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	return nil
}
