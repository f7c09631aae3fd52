// Package main provides the graphask CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/graphask/internal/cli"

	// Register graph store adapters
	_ "github.com/leapstack-labs/graphask/pkg/adapters/neo4j"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
