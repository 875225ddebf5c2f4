// Package main provides the entry point for the beanboard service.
package main

import (
	"fmt"
	"os"

	"github.com/beanlab/beanboard/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
