package cli

import (
	"database/sql"
	"errors"
	"fmt"

	migratelib "github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq" // postgres driver
	"github.com/spf13/cobra"

	"github.com/beanlab/beanboard/pkg/database/migrate"
)

// NewMigrateCommand creates the migrate command group. Migrations apply to
// the postgres backend only; the sqlite backend creates its schema on open.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres scores schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withPostgres(opts, migrate.Up)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (destroys leaderboard data)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withPostgres(opts, migrate.Down)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withPostgres(opts, func(db *sql.DB) error {
				version, dirty, err := migrate.Version(db)
				if errors.Is(err, migratelib.ErrNilVersion) {
					c.Println("no migrations applied")
					return nil
				}
				if err != nil {
					return err
				}
				c.Printf("version %d (dirty=%v)\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

// withPostgres opens the configured postgres database and runs fn.
func withPostgres(opts *RootOptions, fn func(*sql.DB) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrations require the postgres driver, config uses %q", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}
	defer func() { _ = db.Close() }()

	return fn(db)
}
