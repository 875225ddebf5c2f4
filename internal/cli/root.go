// Package cli assembles the beanboard command tree.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/beanlab/beanboard/internal/server"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root beanboard command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "beanboard",
		Short: "Leaderboard ingestion and query service for constrained virtual-world clients",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// loadConfig resolves the effective configuration for a command: the file
// named by --config when given, else built-in defaults.
func loadConfig(opts *RootOptions) (*server.Config, error) {
	if opts.ConfigPath != "" {
		return server.LoadConfig(opts.ConfigPath)
	}
	cfg := &server.Config{}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
