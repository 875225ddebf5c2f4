// Package server wires the ingestion protocol, leaderboard reads, and
// operational endpoints into one HTTP service.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/beanlab/beanboard/pkg/assembly"
	"github.com/beanlab/beanboard/pkg/board"
	"github.com/beanlab/beanboard/pkg/health"
	"github.com/beanlab/beanboard/pkg/ingest"
	"github.com/beanlab/beanboard/pkg/middleware"
	"github.com/beanlab/beanboard/pkg/mirror"
	"github.com/beanlab/beanboard/pkg/scores"
	"github.com/beanlab/beanboard/pkg/scores/postgres"
	"github.com/beanlab/beanboard/pkg/scores/sqlite"
	"github.com/beanlab/beanboard/pkg/session"
)

// Version is set at build time.
var Version = "dev"

// Server owns the service's components and lifecycle.
type Server struct {
	cfg      *Config
	log      *slog.Logger
	sessions *session.MemoryStore
	store    scores.Store
	asm      *assembly.Assembler
	project  *board.Projector
	mirror   *mirror.Mirror
	checker  *health.Checker
	httpSrv  *http.Server
}

// New builds a fully wired server from config.
func New(cfg *Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	sessions := session.NewMemoryStore(cfg.Session.TTL)
	engine := ingest.New(store, log)
	asm := assembly.New(sessions, engine, assembly.Config{
		FreshnessWindow: cfg.Protocol.FreshnessWindow,
		DecodeMode:      cfg.decodeMode(),
	}, log)
	projector := board.New(store)

	s := &Server{
		cfg:      cfg,
		log:      log,
		sessions: sessions,
		store:    store,
		asm:      asm,
		project:  projector,
		checker:  health.NewChecker(store),
		mirror: mirror.New(mirror.Config{
			URL:      cfg.Mirror.URL,
			Interval: cfg.Mirror.Interval,
			Limit:    cfg.Mirror.Limit,
			World:    cfg.Mirror.World,
		}, projector, log),
	}

	s.httpSrv = &http.Server{
		Addr: cfg.Server.Address,
		Handler: middleware.Chain(s.routes(),
			middleware.RequestID,
			middleware.Logging(log),
			cfg.rateLimiter().Middleware,
		),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// openStore opens the configured scores backend.
func openStore(cfg *Config) (scores.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.Open(cfg.Database.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// Run serves until ctx is cancelled, then drains and releases resources.
func (s *Server) Run(ctx context.Context) error {
	s.sessions.StartSweepRoutine(s.cfg.Session.SweepInterval)
	s.mirror.Start()
	s.checker.SetReady()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "address", s.cfg.Server.Address, "version", Version)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.shutdownComponents()
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.checker.SetDraining()
	s.log.Info("draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http shutdown incomplete", "error", err)
	}

	s.shutdownComponents()
	return nil
}

func (s *Server) shutdownComponents() {
	if err := s.mirror.Close(); err != nil {
		s.log.Warn("closing mirror", "error", err)
	}
	if err := s.sessions.Close(); err != nil {
		s.log.Warn("closing session store", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.log.Warn("closing scores store", "error", err)
	}
}
