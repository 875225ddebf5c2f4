package cli

import (
	"github.com/spf13/cobra"

	"github.com/beanlab/beanboard/internal/server"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the beanboard version",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			c.Printf("beanboard %s\n", server.Version)
		},
	}
}
