package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beanlab/beanboard/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ingestion and leaderboard HTTP service",
		Long: `Start the beanboard HTTP service.

The service accepts symbol-append and commit calls from constrained
virtual-world clients, reassembles them into score records, and serves
ranked leaderboard queries. It drains gracefully on SIGINT or SIGTERM.

Example:
  beanboard serve --config /etc/beanboard/config.yaml
  beanboard serve --address :9090`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}

			srv, err := server.New(cfg, slog.Default())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides config)")

	return cmd
}
