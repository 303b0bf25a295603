// Package main is the entry point for the chviewgraph binary.
package main

import (
	"os"

	"github.com/leapstack-labs/chviewgraph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
