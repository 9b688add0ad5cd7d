// Package main provides the leapaudit CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapaudit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
